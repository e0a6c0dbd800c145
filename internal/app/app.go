// Package app wires every FluidVoice component into one running daemon:
// DevicePicker, CaptureEngine, HotkeyMonitor, TranscriptionDispatcher,
// VocabularyCorrector, TextInjector, SessionController, metrics,
// termstatus, and uiserver. The version check runs in cmd/fluidvoice
// before a Daemon is built.
//
// Generalized from the teacher's internal/app/daemon.go Daemon type,
// which wired a recorder, a single hardcoded-chord hotkey manager, and
// an AssemblyAI client directly together with no state-machine
// indirection; FluidVoice's wiring instead hands each subsystem to
// session.Controller through the narrow interfaces it declares.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluidvoice/fluidvoice/internal/audio"
	"github.com/fluidvoice/fluidvoice/internal/config"
	"github.com/fluidvoice/fluidvoice/internal/dispatch"
	"github.com/fluidvoice/fluidvoice/internal/hotkey"
	"github.com/fluidvoice/fluidvoice/internal/inject"
	"github.com/fluidvoice/fluidvoice/internal/logging"
	"github.com/fluidvoice/fluidvoice/internal/metrics"
	"github.com/fluidvoice/fluidvoice/internal/session"
	"github.com/fluidvoice/fluidvoice/internal/target"
	"github.com/fluidvoice/fluidvoice/internal/termstatus"
	"github.com/fluidvoice/fluidvoice/internal/uiserver"
	"github.com/fluidvoice/fluidvoice/internal/vocabulary"
)

// Options carries the flag-level overrides cmd/fluidvoice's flag surface
// collects before calling Initialize.
type Options struct {
	WorkerBinaryPath string
	ModelPath        string
	UIAddr           string
	ShowStats        bool
}

// Daemon is FluidVoice's top-level process: it owns every subsystem's
// lifetime and the graceful-shutdown signal handling the teacher's
// Daemon.Run already did.
type Daemon struct {
	log     *logging.Logger
	opts    Options
	cfg     *config.Config
	metrics *metrics.MetricsManager
	status  *termstatus.Control

	devices    *audio.DevicePicker
	capture    *audio.CaptureEngine
	hotkeyMon  *hotkey.Monitor
	dispatcher *dispatch.Dispatcher
	vocab      *vocabulary.Service
	injector   *inject.Injector
	targeter   session.TargetCapturer
	controller *session.Controller
	ui         *uiserver.Server

	isFirstStatusLine bool
	lastRecordStart   time.Time
}

// NewDaemon builds an unstarted Daemon.
func NewDaemon(opts Options) *Daemon {
	return &Daemon{
		log:               logging.New("app"),
		opts:              opts,
		status:            termstatus.NewControl(),
		isFirstStatusLine: true,
	}
}

// Initialize constructs and connects every subsystem but does not yet
// start listening for hotkeys.
func (d *Daemon) Initialize() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	d.cfg = cfg

	metricsDir, err := config.GetMetricsDir()
	if err != nil {
		return fmt.Errorf("failed to resolve metrics directory: %w", err)
	}
	d.metrics, err = metrics.NewMetricsManager(metricsDir)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics manager: %w", err)
	}
	if cfg.TypingSpeedWPM > 0 {
		d.metrics.SetTypingSpeed(cfg.TypingSpeedWPM)
	}

	if err := audio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	d.devices = audio.NewDevicePicker(cfg.ForcedDeviceUID, d.onDeviceRebind)
	device, err := d.devices.Select()
	if err != nil {
		return fmt.Errorf("failed to select an input device: %w", err)
	}
	d.devices.SetActive(device)
	d.capture = audio.NewCaptureEngine(device)
	d.capture.Prewarm()
	d.devices.StartWatching(2 * time.Second)

	d.hotkeyMon = hotkey.New(cfg.HotkeyChord, hotkey.Mode(cfg.InputMode), time.Duration(cfg.HoldThresholdMs)*time.Millisecond)

	vocabPath, err := config.VocabularyFilePath()
	if err != nil {
		return fmt.Errorf("failed to resolve vocabulary path: %w", err)
	}
	d.vocab = vocabulary.NewService(vocabPath)

	d.injector = inject.New()
	d.targeter = target.NewCapturer()

	idleStart := time.Duration(cfg.WorkerIdleStartMs) * time.Millisecond
	d.dispatcher = dispatch.New(d.opts.WorkerBinaryPath, d.opts.ModelPath, idleStart)

	d.controller = session.New(
		d.capture,
		d.dispatcher,
		d.vocab.Corrector,
		meteredInjector{d},
		d.targeter,
		d.hotkeyMon.Commands(),
		d,
		nil,
	)

	if d.opts.UIAddr != "" {
		d.ui = uiserver.New(d.opts.UIAddr, d.controller, d.vocab, levelAdapter{d.capture})
	}

	return nil
}

// levelAdapter narrows *audio.CaptureEngine to uiserver.LevelSource.
type levelAdapter struct{ c *audio.CaptureEngine }

func (l levelAdapter) Level() float32 { return l.c.Level() }

// meteredInjector decorates the real Injector with productivity-metrics
// recording, generalized from the teacher's OnRelease, which called
// displaySessionMetrics inline right after a successful paste.
type meteredInjector struct{ d *Daemon }

func (m meteredInjector) Inject(text string, tgt target.AppTarget) error {
	if err := m.d.injector.Inject(text, tgt); err != nil {
		return err
	}
	m.d.recordSessionMetrics(text, m.d.injector.LastStrategy())
	return nil
}

func (d *Daemon) recordSessionMetrics(text, injectionMethod string) {
	duration := time.Since(d.lastRecordStart)
	sessionMetrics, err := d.metrics.RecordSession(text, duration, injectionMethod)
	if err != nil {
		d.log.Warnf("failed to record session metrics: %v", err)
		return
	}
	today, err := d.metrics.GetTodayMetrics()
	if err != nil {
		d.log.Warnf("failed to load today's metrics: %v", err)
		today = nil
	}
	for _, line := range metrics.NewStatsFormatter().FormatSessionSummaryLines(sessionMetrics, today) {
		fmt.Println(line)
	}
}

func (d *Daemon) onDeviceRebind(dev *audio.Device) {
	d.log.Infof("input device changed, rebinding: %s", dev.HumanName)
	if d.capture.IsRunning() {
		// spec section 4.3's device_lost failure mode: the previously
		// active device vanished while a recording was in flight.
		// SessionController checks CaptureEngine.DeviceLost() after
		// Stop to finalize the partial recording instead of erroring.
		d.capture.MarkDeviceLost()
	}
	d.capture.Rebind(dev)
	d.capture.Prewarm()
}

// Run starts every background subsystem and blocks until SIGINT/SIGTERM.
func (d *Daemon) Run() error {
	if err := d.vocab.Start(); err != nil {
		return fmt.Errorf("failed to start vocabulary watcher: %w", err)
	}
	if err := d.hotkeyMon.Start(); err != nil {
		return fmt.Errorf("failed to start hotkey monitor: %w", err)
	}
	go d.watchHotkeyErrors()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if d.ui != nil {
		d.ui.Start(ctx)
	}

	go d.controller.Run()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	fmt.Println("FluidVoice started")
	fmt.Printf("Hotkey: %s (%s)\n", d.cfg.HotkeyChord, d.cfg.InputMode)
	fmt.Println("Press Ctrl+C to exit")
	if d.opts.ShowStats {
		d.printTotalStats()
	}

	<-sig
	fmt.Println("\nShutting down...")
	d.Cleanup()
	return nil
}

func (d *Daemon) printTotalStats() {
	total, err := d.metrics.GetTotalMetrics()
	if err != nil {
		d.log.Warnf("failed to load total metrics: %v", err)
		return
	}
	fmt.Printf("Lifetime: %d sessions, %d words, %s saved\n", total.TotalSessions, total.TotalWords, total.TotalSaved)
}

func (d *Daemon) watchHotkeyErrors() {
	for err := range d.hotkeyMon.Errors() {
		d.log.Errorf("hotkey monitor error: %v", err)
	}
}

// OnStateChange implements session.Observer: it notes the start time of
// each Recording, drives the terminal status line, and forwards the
// state to the UI server. Session metrics are recorded by
// meteredInjector after a successful injection, not here.
func (d *Daemon) OnStateChange(s session.State) {
	if s == session.Recording {
		d.lastRecordStart = time.Now()
	}
	line := termstatus.RenderSession(s, float64(d.capture.Level()))
	d.status.UpdateInPlace(line, d.isFirstStatusLine)
	d.isFirstStatusLine = false

	if d.ui != nil {
		d.ui.OnStateChange(s)
	}
}

func (d *Daemon) OnError(kind string, err error) {
	d.log.Errorf("%s: %v", kind, err)
	if d.ui != nil {
		d.ui.OnError(kind, err)
	}
}

// Cleanup stops every subsystem in roughly reverse-start order.
func (d *Daemon) Cleanup() {
	if d.controller != nil {
		d.controller.Stop()
	}
	if d.hotkeyMon != nil {
		d.hotkeyMon.Stop()
	}
	if d.vocab != nil {
		d.vocab.Stop()
	}
	if d.dispatcher != nil {
		d.dispatcher.Stop()
	}
	if d.ui != nil {
		d.ui.Stop()
	}
	audio.Terminate()
}
