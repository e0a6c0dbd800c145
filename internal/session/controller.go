package session

import (
	"time"

	"github.com/fluidvoice/fluidvoice/internal/apperror"
	"github.com/fluidvoice/fluidvoice/internal/audio"
	"github.com/fluidvoice/fluidvoice/internal/clock"
	"github.com/fluidvoice/fluidvoice/internal/hotkey"
	"github.com/fluidvoice/fluidvoice/internal/logging"
	"github.com/fluidvoice/fluidvoice/internal/target"
)

// Capture is the subset of CaptureEngine's behavior SessionController
// drives. Defined here (rather than importing *audio.CaptureEngine
// directly) so tests can substitute a mock, per spec section 8's S6
// scenario ("feed synthetic PCM to the capture mock").
type Capture interface {
	Start() error
	Stop(startedAt time.Time) (*audio.Recording, error)
	Cancel()
	// DeviceLost reports whether the bound device disappeared since the
	// last Start, per spec section 4.3's device_lost failure mode.
	DeviceLost() bool
}

// Dispatcher is the subset of TranscriptionDispatcher's behavior the
// controller needs.
type Dispatcher interface {
	Transcribe(pcm []int16) <-chan DispatchOutcome
}

// DispatchOutcome is what a Dispatcher reports back.
type DispatchOutcome struct {
	Text string
	Err  error
}

// Corrector is the subset of VocabularyCorrector's behavior needed here.
type Corrector interface {
	Correct(text string) string
}

// Injector is the subset of TextInjector's behavior needed here.
type Injector interface {
	Inject(text string, tgt target.AppTarget) error
}

// TargetCapturer captures the current foreground application at
// recording start, per spec section 4.4's "capture AppTarget at this
// instant".
type TargetCapturer interface {
	Capture() (target.AppTarget, error)
}

// Controller is SessionController: a single-threaded state machine whose
// state is only ever read or written from its own run loop goroutine,
// per spec section 3 invariant 2 and section 5's single-writer
// requirement.
type Controller struct {
	log            *logging.Logger
	clock          clock.Clock
	capture        Capture
	dispatcher     Dispatcher
	corrector      Corrector
	injector       Injector
	targetCapturer TargetCapturer
	observer       Observer

	events     chan event
	hotkeyCmds <-chan hotkey.Command
	stopCh     chan struct{}

	state     State
	seq       uint64
	startedAt time.Time
	appTarget target.AppTarget
}

// New builds a Controller wired to its collaborators. Run begins the
// run loop; the controller is Idle until then.
func New(
	capture Capture,
	dispatcher Dispatcher,
	corrector Corrector,
	injector Injector,
	targetCapturer TargetCapturer,
	hotkeyCmds <-chan hotkey.Command,
	observer Observer,
	c clock.Clock,
) *Controller {
	if c == nil {
		c = clock.Real{}
	}
	return &Controller{
		log:            logging.New("session"),
		clock:          c,
		capture:        capture,
		dispatcher:     dispatcher,
		corrector:      corrector,
		injector:       injector,
		targetCapturer: targetCapturer,
		observer:       observer,
		events:         make(chan event, 16),
		hotkeyCmds:     hotkeyCmds,
		stopCh:         make(chan struct{}),
		state:          Idle,
	}
}

// State returns the controller's current state. Safe to call from other
// goroutines only for diagnostics/tests; the authoritative reads all
// happen inside Run.
func (c *Controller) State() State { return c.state }

// Submit enqueues a command event (used directly by tests and by the
// Cancel command surface of spec section 6.6).
func (c *Controller) Submit(kind string) {
	switch kind {
	case "start":
		c.events <- event{kind: evHotkeyStart, seq: c.seq}
	case "stop":
		c.events <- event{kind: evHotkeyStop, seq: c.seq}
	case "toggle":
		c.events <- event{kind: evHotkeyToggle, seq: c.seq}
	case "cancel":
		c.events <- event{kind: evCancel, seq: c.seq}
	}
}

// Run is the single consumer loop. It forwards hotkey commands onto the
// same event channel everything else is serialized through, so the
// machine genuinely has one input channel as spec section 4.4 requires.
func (c *Controller) Run() {
	go c.forwardHotkeyCommands()
	for {
		select {
		case <-c.stopCh:
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// Stop halts the run loop.
func (c *Controller) Stop() { close(c.stopCh) }

func (c *Controller) forwardHotkeyCommands() {
	for {
		select {
		case <-c.stopCh:
			return
		case cmd, ok := <-c.hotkeyCmds:
			if !ok {
				return
			}
			switch cmd {
			case hotkey.CmdStart:
				c.events <- event{kind: evHotkeyStart}
			case hotkey.CmdStop:
				c.events <- event{kind: evHotkeyStop}
			case hotkey.CmdToggle:
				c.events <- event{kind: evHotkeyToggle}
			}
		}
	}
}

// sessionBound reports whether an event kind originates from a
// background goroutine tied to a specific session generation (capture
// snapshot, dispatch response, injection result, a deadline timer, or
// an error cooldown) as opposed to a live user command. Cooperative
// cancellation (spec section 4.4's "Cancellation is cooperative") works
// by bumping the sequence counter on every transition, so a
// session-bound event from a since-abandoned session is simply dropped
// here rather than acted on.
func sessionBound(k eventKind) bool {
	switch k {
	case evCaptureDone, evDispatchDone, evInjectDone, evDeadline, evErrorCooldown:
		return true
	}
	return false
}

func (c *Controller) handle(ev event) {
	if sessionBound(ev.kind) && ev.seq != c.seq {
		return // stale response from an abandoned session generation
	}

	switch c.state {
	case Idle:
		c.handleIdle(ev)
	case Error:
		c.handleError(ev)
	case Recording:
		c.handleRecording(ev)
	case Stopping:
		c.handleStopping(ev)
	case Transcribing:
		c.handleTranscribing(ev)
	case Injecting:
		c.handleInjecting(ev)
	}
}

func (c *Controller) handleIdle(ev event) {
	if ev.kind != evHotkeyStart && ev.kind != evHotkeyToggle {
		return
	}
	tgt, err := c.targetCapturer.Capture()
	if err != nil {
		c.log.Warnf("target capture failed, proceeding without a confirmed target: %v", err)
	}
	c.appTarget = tgt

	if err := c.capture.Start(); err != nil {
		c.toError(apperror.Internal, err)
		return
	}
	c.startedAt = c.clock.Now()
	c.transition(Recording)
	// Recording has no deadline (spec section 4.4).
}

func (c *Controller) handleRecording(ev event) {
	switch ev.kind {
	case evCancel:
		c.capture.Cancel()
		c.transition(Idle)
	case evHotkeyStop, evHotkeyToggle:
		c.beginStopping()
	}
}

func (c *Controller) beginStopping() {
	c.transition(Stopping)
	c.armDeadline(StoppingDeadline)
	seq := c.seq
	go func() {
		rec, err := c.capture.Stop(c.startedAt)
		c.events <- event{kind: evCaptureDone, seq: seq, pcm: recordingResult{
			samples:    sliceOrNil(rec),
			truncated:  rec != nil && rec.Truncated,
			deviceLost: c.capture.DeviceLost(),
			err:        err,
		}}
	}()
}

func sliceOrNil(rec *audio.Recording) []int16 {
	if rec == nil {
		return nil
	}
	return rec.PCM
}

func (c *Controller) handleStopping(ev event) {
	if ev.kind == evDeadline {
		c.toError(apperror.Internal, errDeadlineExceeded("stopping"))
		return
	}
	if ev.kind != evCaptureDone {
		return
	}
	if ev.pcm.err != nil {
		c.toError(apperror.DeviceLost, ev.pcm.err)
		return
	}
	if ev.pcm.truncated {
		c.log.Warnf("recording truncated: ring buffer overflowed")
	}
	if ev.pcm.deviceLost {
		// spec section 4.3's device_lost failure mode: the device
		// disappeared mid-recording but Stop still produced a (likely
		// truncated) partial Recording, so the pipeline finalizes it
		// instead of aborting to Error.
		c.log.Warnf("input device disappeared mid-recording, finalizing partial recording")
		c.notifyError(apperror.DeviceLost, errDeviceLostMidRecording)
	}
	c.transition(Transcribing)
	c.armDeadline(TranscribingDeadline)

	seq := c.seq
	out := c.dispatcher.Transcribe(ev.pcm.samples)
	go func() {
		result := <-out
		c.events <- event{kind: evDispatchDone, seq: seq, text: dispatchResult{text: result.Text, err: result.Err}}
	}()
}

func (c *Controller) handleTranscribing(ev event) {
	switch ev.kind {
	case evDeadline:
		c.toError(apperror.WorkerTimeout, errDeadlineExceeded("transcribing"))
	case evCancel:
		// Cooperative cancellation: detach by bumping seq so the
		// eventual evDispatchDone for this session is dropped as stale.
		c.transition(Idle)
	case evDispatchDone:
		if ev.text.err != nil {
			c.toError(apperror.WorkerUnavailable, ev.text.err)
			return
		}
		corrected := c.corrector.Correct(ev.text.text)
		c.transition(Injecting)
		c.armDeadline(InjectingDeadline)

		seq := c.seq
		go func() {
			err := c.injector.Inject(corrected, c.appTarget)
			c.events <- event{kind: evInjectDone, seq: seq, injErr: err}
		}()
	}
}

func (c *Controller) handleInjecting(ev event) {
	switch ev.kind {
	case evDeadline:
		c.toError(apperror.ActivationFailed, errDeadlineExceeded("injecting"))
	case evInjectDone:
		if ev.injErr != nil {
			c.toError(apperror.ActivationFailed, ev.injErr)
			return
		}
		c.transition(Idle)
	}
}

func (c *Controller) handleError(ev event) {
	if ev.kind == evErrorCooldown && ev.seq == c.seq {
		c.transition(Idle)
	}
	// Any other event arriving during the cooldown window is dropped:
	// the machine only leaves Error via the cooldown timer.
}

// toError implements the "{any} -> Error" row of spec section 4.4's
// transition table: log, free resources (the caller has already stopped
// whatever subsystem failed), and schedule the 500ms cool-down back to
// Idle. The cooldown itself is delivered as an ordinary event so the
// Idle transition still only ever happens on the run-loop goroutine.
func (c *Controller) toError(kind apperror.Kind, err error) {
	if c.observer != nil {
		c.observer.OnError(string(kind), err)
	}
	c.log.Errorf("%s: %v", kind, err)
	c.transition(Error)

	seq := c.seq
	go func() {
		select {
		case <-c.clock.After(ErrorCooldown):
			c.events <- event{kind: evErrorCooldown, seq: seq}
		case <-c.stopCh:
		}
	}()
}

func (c *Controller) armDeadline(d time.Duration) {
	seq := c.seq
	go func() {
		select {
		case <-c.clock.After(d):
			c.events <- event{kind: evDeadline, seq: seq}
		case <-c.stopCh:
		}
	}()
}

func (c *Controller) transition(s State) {
	c.seq++
	c.state = s
	if c.observer != nil {
		c.observer.OnStateChange(s)
	}
}

type errDeadlineExceeded string

func (e errDeadlineExceeded) Error() string { return string(e) + " deadline exceeded" }

var errDeviceLostMidRecording = errString("input device disappeared mid-recording")

type errString string

func (e errString) Error() string { return string(e) }

// notifyError reports a non-fatal condition to the Observer without
// transitioning state, for failure modes spec section 4.3 says should
// not abort the in-flight pipeline (device_lost: "the partial Recording
// is still returned").
func (c *Controller) notifyError(kind apperror.Kind, err error) {
	if c.observer != nil {
		c.observer.OnError(string(kind), err)
	}
}
