// Package config owns FluidVoice's on-disk settings: the small JSON
// application config (hotkey chord, forced device, input mode, typing
// speed) and, via Manager in manager.go, the JSONC vocabulary file
// described in spec section 4.8. The load/save/path shape is carried over from the
// teacher's internal/config/config.go, which used exactly this
// directory-resolution and fallback idiom for a single AssemblyAI API
// key; here it owns a handful of local settings instead of a secret.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	appDirName     = "fluidvoice"
	configFileName = "config.json"
)

// InputMode selects how HotkeyMonitor interprets a press/release pair.
type InputMode string

const (
	ModeToggle     InputMode = "toggle"
	ModePushToTalk InputMode = "push_to_talk"
)

// Config is FluidVoice's application-level settings, distinct from the
// vocabulary file (see Manager in manager.go and vocabulary.ParseEntries).
type Config struct {
	HotkeyChord       string    `json:"hotkeyChord"`
	InputMode         InputMode `json:"inputMode"`
	HoldThresholdMs   int       `json:"holdThresholdMs"`
	ForcedDeviceUID   string    `json:"forcedDeviceUid,omitempty"`
	TypingSpeedWPM    int       `json:"typingSpeedWpm"`
	WorkerIdleStartMs int       `json:"workerIdleStartMs"`
}

// DefaultConfig mirrors the defaults named throughout spec section 4:
// 200ms hold threshold (4.1), 500ms worker eager-start delay (4.5).
func DefaultConfig() *Config {
	return &Config{
		HotkeyChord:       "fn",
		InputMode:         ModePushToTalk,
		HoldThresholdMs:   200,
		TypingSpeedWPM:    40,
		WorkerIdleStartMs: 500,
	}
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	return filepath.Join(home, ".config", appDirName), nil
}

// GetConfigPath returns the resolved path to config.json, creating the
// containing directory if necessary.
func GetConfigPath() (string, error) {
	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadConfig reads config.json, falling back to defaults (and persisting
// them) when the file does not yet exist.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig persists cfg as pretty-printed JSON with owner-only
// permissions, the same mode the teacher used for its API-key file.
func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetMetricsDir returns the directory productivity metrics are stored
// under, alongside config.json.
func GetMetricsDir() (string, error) {
	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	metricsDir := filepath.Join(dir, "metrics")
	if err := os.MkdirAll(metricsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create metrics directory: %w", err)
	}
	return metricsDir, nil
}

// VocabularyFilePath returns the path to vocabulary.jsonc per section 6.1.
func VocabularyFilePath() (string, error) {
	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vocabulary.jsonc"), nil
}
