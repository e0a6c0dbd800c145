package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fluidvoice/fluidvoice/internal/apperror"
	"github.com/fluidvoice/fluidvoice/internal/logging"
)

// ReloadFunc is invoked by Manager whenever the watched file changes (or
// on the initial load). raw is the comment-stripped JSON; err is set when
// loading or parsing failed, in which case raw is nil and the caller
// should keep its previous (or an empty) configuration, per spec section
// 4.8: "on parse failure, fall back to an empty config and log a
// structured error including line/column."
type ReloadFunc func(raw []byte, err error)

// Manager owns a single JSONC file: initial load, filesystem watch with
// debounce, and callback fan-out. FluidVoice runs one Manager for
// vocabulary.jsonc; the type is general enough to host a second
// JSONC file later without change.
type Manager struct {
	path          string
	debounce      time.Duration
	log           *logging.Logger
	mu            sync.Mutex
	subscribers   []ReloadFunc
	watcher       *fsnotify.Watcher
	stopCh        chan struct{}
	debounceTimer *time.Timer
}

// NewManager creates a Manager for the file at path. It does not start
// watching until Start is called.
func NewManager(path string, debounce time.Duration) *Manager {
	return &Manager{
		path:     path,
		debounce: debounce,
		log:      logging.New("config"),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers fn to be called on every successful or failed
// reload. Subscribe does not itself trigger a call; use Load for the
// initial read.
func (m *Manager) Subscribe(fn ReloadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Load performs a single synchronous read-and-parse-check of the file
// and returns the comment-stripped bytes, without notifying subscribers.
func (m *Manager) Load() ([]byte, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return []byte(`{}`), nil
	}
	if err != nil {
		return nil, apperror.New(apperror.ConfigParseError, "config.Load", err)
	}
	stripped := StripJSONComments(data)
	if !json.Valid(stripped) {
		line, col := locateSyntaxError(stripped)
		return nil, apperror.New(apperror.ConfigParseError, "config.Load", fmt.Errorf("invalid JSON in %s", m.path)).
			WithContext("line", fmt.Sprintf("%d", line)).
			WithContext("column", fmt.Sprintf("%d", col))
	}
	return stripped, nil
}

// locateSyntaxError decodes just enough to find where json.Unmarshal
// would fail and converts the byte offset to a 1-based line/column.
func locateSyntaxError(data []byte) (line, col int) {
	var v any
	err := json.Unmarshal(data, &v)
	se, ok := err.(*json.SyntaxError)
	if !ok {
		return 1, 1
	}
	offset := se.Offset
	line = 1
	lastNL := int64(-1)
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			lastNL = i
		}
	}
	col = int(offset - lastNL)
	return line, col
}

func (m *Manager) notify(raw []byte, err error) {
	m.mu.Lock()
	subs := append([]ReloadFunc(nil), m.subscribers...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(raw, err)
	}
}

// Start performs the initial load (notifying subscribers immediately)
// and installs a debounced filesystem watcher on the file's containing
// directory — watching the directory rather than the file survives
// editors that write via temp-file-rename, which replaces the inode and
// would silently drop a watch on the file itself.
func (m *Manager) Start() error {
	raw, err := m.Load()
	m.notify(raw, err)

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config manager: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config manager: creating watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("config manager: watching %s: %w", dir, err)
	}
	m.watcher = w

	go m.watchLoop()
	return nil
}

func (m *Manager) watchLoop() {
	for {
		select {
		case <-m.stopCh:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			m.scheduleReload()
		case werr, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Warnf("watcher error: %v", werr)
		}
	}
}

func (m *Manager) scheduleReload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.AfterFunc(m.debounce, func() {
		raw, err := m.Load()
		if err != nil {
			m.log.Warnf("reload failed: %v", err)
		}
		m.notify(raw, err)
	})
}

// Stop halts the filesystem watcher.
func (m *Manager) Stop() {
	close(m.stopCh)
	if m.watcher != nil {
		m.watcher.Close()
	}
}
