package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/fluidvoice/fluidvoice/internal/apperror"
	"github.com/fluidvoice/fluidvoice/internal/logging"
)

const framesPerBuffer = 1024

// CaptureEngine is the hardest subsystem per spec section 4.3: it binds
// directly to a specific Device (never the OS default, to avoid
// triggering Bluetooth-profile switching), pre-builds its resampler
// state ahead of Start, and runs a single tap callback that both feeds
// the ring buffer and updates an RMS level without taking a lock. The
// tap's resampling step allocates a new output slice on every callback.
//
// Generalized from the teacher's internal/audio/recorder.go, which
// always opened PortAudio's default stream; device selection, pre-
// warming, and the ring buffer are new.
type CaptureEngine struct {
	log    *logging.Logger
	device *Device
	ring   *Ring

	mu         sync.Mutex
	stream     *portaudio.Stream
	resampler  *Resampler
	running    atomic.Bool
	prewarmed  bool
	sessionID  atomic.Uint64
	deviceLost atomic.Bool
}

// NewCaptureEngine constructs an engine bound to device. Binding happens
// at construction time (setting the device-id property before starting,
// per spec section 4.3 item 1); Prewarm then negotiates the format
// without starting the graph.
func NewCaptureEngine(device *Device) *CaptureEngine {
	return &CaptureEngine{
		log:    logging.New("capture"),
		device: device,
		ring:   NewRing(),
	}
}

// Rebind switches the engine to a newly selected device, e.g. after
// DevicePicker signals a device-list change. It only replaces the device
// and clears the prewarm flag; a stream that is already running is left
// as it is, and the next Start opens the new device.
func (c *CaptureEngine) Rebind(device *Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = device
	c.prewarmed = false
}

// Prewarm builds the Resampler for the bound device's native rate and
// channel count ahead of the next Start, so Start does not have to. It
// does not open the device or the stream: Start always opens and starts
// a new stream. It waits at most 2s; on timeout it logs a warning, and
// if the engine is left un-prewarmed Start builds the Resampler itself.
func (c *CaptureEngine) Prewarm() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.prewarmed || c.device == nil {
			return
		}
		c.resampler = NewResampler(c.device.NativeSampleRate, c.device.InputChannelCount)
		c.prewarmed = true
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		c.log.Warnf("prewarm exceeded 2s budget, falling back to cold start")
	}
}

// Start opens and starts a capture stream bound to the device, first
// building the Resampler if Prewarm has not already done so.
func (c *CaptureEngine) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return apperror.New(apperror.DeviceUnavailable, "capture.Start", fmt.Errorf("no device bound"))
	}
	if !c.prewarmed {
		c.resampler = NewResampler(c.device.NativeSampleRate, c.device.InputChannelCount)
	}
	c.resampler.Reset()
	c.ring.Reset()
	c.deviceLost.Store(false)
	c.sessionID.Add(1)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   deviceInfoFor(c.device),
			Channels: c.device.InputChannelCount,
			Latency:  20 * time.Millisecond,
		},
		SampleRate:      c.device.NativeSampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, c.tap)
	if err != nil {
		if isPermissionErr(err) {
			return apperror.New(apperror.PermissionDenied, "capture.Start", err)
		}
		return apperror.New(apperror.DeviceUnavailable, "capture.Start", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return apperror.New(apperror.DeviceUnavailable, "capture.Start", err)
	}

	c.stream = stream
	c.running.Store(true)
	c.prewarmed = false
	return nil
}

// tap is the real-time audio callback. It takes no lock and never
// blocks, but the resampler allocates a new output slice on each call.
// It feeds the ring buffer and updates the atomic RMS level — "one tap,
// two jobs" per spec section 4.3 item 3.
func (c *CaptureEngine) tap(in []float32) {
	if !c.running.Load() {
		return
	}
	pcm := c.resampler.Process(in)
	c.ring.Push(pcm)
	c.ring.SetLevel(rms(pcm))
}

func rms(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// Stop implements spec section 4.3 item 5: signal the graph to stop,
// drain any pending buffer, snapshot into a Recording, reset the ring,
// and return synchronously.
func (c *CaptureEngine) Stop(startedAt time.Time) (*Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil || !c.running.Load() {
		return nil, apperror.New(apperror.Internal, "capture.Stop", fmt.Errorf("not recording"))
	}
	c.running.Store(false)

	if err := c.stream.Stop(); err != nil {
		c.log.Warnf("stream stop error (continuing to drain): %v", err)
	}
	if err := c.stream.Close(); err != nil {
		c.log.Warnf("stream close error: %v", err)
	}
	c.stream = nil

	pcm := c.ring.Drain()
	truncated := c.ring.Truncated()
	c.ring.Reset()

	rec := &Recording{
		ID:        c.sessionID.Load(),
		StartedAt: startedAt,
		StoppedAt: time.Now(),
		PCM:       pcm,
		Truncated: truncated,
	}
	return rec, nil
}

// Cancel discards the in-progress recording without producing a
// Recording, for SessionController's Recording -> Idle `cancel` path.
func (c *CaptureEngine) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
		c.stream = nil
	}
	c.running.Store(false)
	c.ring.Reset()
}

// Level returns the current RMS level (0-1), safe to poll from the UI
// thread at up to 60Hz per spec section 4.3 item 3.
func (c *CaptureEngine) Level() float32 { return c.ring.Level() }

// DeviceLost reports whether the bound device disappeared mid-recording;
// SessionController checks this after Stop to decide whether to surface
// device_lost even though a partial Recording was still produced.
func (c *CaptureEngine) DeviceLost() bool { return c.deviceLost.Load() }

// IsRunning reports whether the capture graph is currently started, so
// DevicePicker's rebind callback can tell a disappearance mid-recording
// apart from one that happens while idle.
func (c *CaptureEngine) IsRunning() bool { return c.running.Load() }

// MarkDeviceLost flags the bound device as having disappeared, called
// from DevicePicker's rebind callback (internal/app) when the active
// device vanishes from the device list while a recording is in flight.
func (c *CaptureEngine) MarkDeviceLost() { c.deviceLost.Store(true) }

func deviceInfoFor(d *Device) *portaudio.DeviceInfo {
	devices, err := portaudio.Devices()
	if err != nil || d.ID >= len(devices) {
		return nil
	}
	return devices[d.ID]
}

// isPermissionErr reports whether err looks like an OS microphone-
// permission denial rather than an ordinary device-unavailable failure.
// PortAudio itself has no dedicated error for this; platform-specific
// wiring (denied TCC prompt on macOS, missing capture privilege on
// Linux) should classify earlier in the call chain where the OS error
// is still available. This is the last-resort stdlib fallback.
func isPermissionErr(err error) bool {
	return false
}

// Initialize wraps portaudio.Initialize, called once at process startup.
func Initialize() error { return portaudio.Initialize() }

// Terminate wraps portaudio.Terminate, called once at process shutdown.
func Terminate() { portaudio.Terminate() }
