package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/fluidvoice/fluidvoice/internal/app"
	"github.com/fluidvoice/fluidvoice/internal/config"
	"github.com/fluidvoice/fluidvoice/internal/metrics"
	"github.com/fluidvoice/fluidvoice/internal/version"
)

func main() {
	isValid, newVersion := version.CheckVersion()
	if !isValid {
		fmt.Printf(`The newest version of FluidVoice is %v but the installed version on your system is %v.

%v

To get the latest features and likely bugfixes, please install the latest version by running 'go install github.com/fluidvoice/fluidvoice/cmd/fluidvoice@main'.`+"\n", newVersion, version.VERSION, version.UPDATE_MESSAGE)
		return
	}

	var (
		showConfig     = flag.Bool("show-config", false, "Show current configuration location")
		showVersion    = flag.Bool("version", false, "Show current version")
		showStats      = flag.Bool("stats", false, "Show usage statistics and productivity metrics")
		resetStats     = flag.Bool("reset-stats", false, "Clear all usage statistics")
		setTypingSpeed = flag.String("set-typing-speed", "", "Set your typing speed in words per minute (e.g., --set-typing-speed=65)")
		workerBinary   = flag.String("worker-binary", "fluidvoice-worker", "Path to the fluidvoice-worker binary")
		modelPath      = flag.String("model", "", "Path to the Vosk speech model directory")
		uiAddr         = flag.String("ui-addr", "", "Local address to serve the UI websocket on, e.g. 127.0.0.1:47212 (empty disables it)")
	)
	flag.Parse()

	if *showVersion {
		handleShowVersion()
		return
	}

	if *showConfig {
		handleShowConfig()
		return
	}

	if *showStats {
		handleShowStats()
		return
	}

	if *resetStats {
		handleResetStats()
		return
	}

	if *setTypingSpeed != "" {
		handleSetTypingSpeed(*setTypingSpeed)
		return
	}

	daemon := app.NewDaemon(app.Options{
		WorkerBinaryPath: *workerBinary,
		ModelPath:        *modelPath,
		UIAddr:           *uiAddr,
		ShowStats:        *showStats,
	})
	if err := daemon.Initialize(); err != nil {
		log.Fatalf("Failed to initialize daemon: %v", err)
	}

	if err := daemon.Run(); err != nil {
		log.Fatalf("Daemon error: %v", err)
	}
}

func handleShowConfig() {
	configPath, err := config.GetConfigPath()
	if err != nil {
		fmt.Printf("Error getting config path: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println("Config file does not exist yet")
	} else {
		fmt.Printf("Config file location: %s\n", configPath)
		fmt.Println()
		fmt.Println("Config file contents:")

		content, err := os.ReadFile(configPath)
		if err != nil {
			fmt.Printf("Error reading config file: %v\n", err)
			return
		}

		fmt.Println(string(content))
	}
}

func handleShowVersion() {
	fmt.Printf("FluidVoice %s\n", version.VERSION)
}

func handleShowStats() {
	metricsDir, err := config.GetMetricsDir()
	if err != nil {
		fmt.Printf("Error getting metrics directory: %v\n", err)
		os.Exit(1)
	}

	metricsManager, err := metrics.NewMetricsManager(metricsDir)
	if err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	totalMetrics, err := metricsManager.GetTotalMetrics()
	if err != nil {
		fmt.Printf("Error getting total metrics: %v\n", err)
		os.Exit(1)
	}

	recentDays, err := metricsManager.GetRecentDays(7)
	if err != nil {
		fmt.Printf("Warning: Failed to get recent metrics: %v\n", err)
	}

	formatter := metrics.NewStatsFormatter()

	fmt.Println(formatter.FormatTotalStats(totalMetrics))
	fmt.Println()

	if len(recentDays) > 0 {
		fmt.Println(formatter.FormatWeeklyStats(recentDays))
		fmt.Println()
	}

	typingSpeed := metricsManager.GetTypingSpeed()
	fmt.Printf("Current typing speed setting: %d WPM\n", typingSpeed)
	fmt.Println("Use --set-typing-speed to update for more accurate time savings")
}

func handleResetStats() {
	metricsDir, err := config.GetMetricsDir()
	if err != nil {
		fmt.Printf("Error getting metrics directory: %v\n", err)
		os.Exit(1)
	}

	metricsManager, err := metrics.NewMetricsManager(metricsDir)
	if err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	if err := metricsManager.ClearAllMetrics(); err != nil {
		fmt.Printf("Error clearing metrics: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("All usage statistics have been cleared")
}

func handleSetTypingSpeed(speedStr string) {
	speed, err := strconv.Atoi(speedStr)
	if err != nil {
		fmt.Printf("Invalid typing speed: %s (must be a number)\n", speedStr)
		os.Exit(1)
	}

	if speed < 10 || speed > 200 {
		fmt.Printf("Typing speed must be between 10 and 200 WPM (got %d)\n", speed)
		os.Exit(1)
	}

	metricsDir, err := config.GetMetricsDir()
	if err != nil {
		fmt.Printf("Error getting metrics directory: %v\n", err)
		os.Exit(1)
	}

	metricsManager, err := metrics.NewMetricsManager(metricsDir)
	if err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	if err := metricsManager.SetTypingSpeed(speed); err != nil {
		fmt.Printf("Error setting typing speed: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.TypingSpeedWPM = speed
	if err := config.SaveConfig(cfg); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Typing speed updated to %d WPM\n", speed)
	fmt.Println("This will be used to calculate more accurate time savings in future sessions")
}
