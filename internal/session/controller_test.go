package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluidvoice/fluidvoice/internal/audio"
	"github.com/fluidvoice/fluidvoice/internal/hotkey"
	"github.com/fluidvoice/fluidvoice/internal/target"
)

type mockCapture struct {
	pcm        []int16
	truncated  bool
	deviceLost bool
}

func (m *mockCapture) Start() error { return nil }
func (m *mockCapture) Stop(time.Time) (*audio.Recording, error) {
	return &audio.Recording{PCM: m.pcm, Truncated: m.truncated}, nil
}
func (m *mockCapture) Cancel()          {}
func (m *mockCapture) DeviceLost() bool { return m.deviceLost }

type mockDispatcher struct{ text string }

func (m *mockDispatcher) Transcribe(pcm []int16) <-chan DispatchOutcome {
	out := make(chan DispatchOutcome, 1)
	out <- DispatchOutcome{Text: m.text}
	return out
}

type mockCorrector struct{}

func (mockCorrector) Correct(text string) string { return text }

type mockInjector struct {
	got chan string
}

func (m *mockInjector) Inject(text string, tgt target.AppTarget) error {
	m.got <- text
	return nil
}

type mockTarget struct{}

func (mockTarget) Capture() (target.AppTarget, error) { return target.AppTarget{}, nil }

type stateRecorder struct {
	states chan State
	errs   chan string
}

func (r *stateRecorder) OnStateChange(s State) { r.states <- s }

func (r *stateRecorder) OnError(kind string, err error) {
	if r.errs == nil {
		return
	}
	select {
	case r.errs <- kind:
	default:
	}
}

// TestS6_HotkeyEndToEnd implements spec section 8's S6 scenario.
func TestS6_HotkeyEndToEnd(t *testing.T) {
	pcm := make([]int16, 16000*2) // 2s of synthetic 16kHz mono PCM
	capture := &mockCapture{pcm: pcm}
	dispatcher := &mockDispatcher{text: "hello world"}
	injector := &mockInjector{got: make(chan string, 1)}
	hotkeyCmds := make(chan hotkey.Command, 4)
	rec := &stateRecorder{states: make(chan State, 16)}

	ctrl := New(capture, dispatcher, mockCorrector{}, injector, mockTarget{}, hotkeyCmds, rec, nil)
	go ctrl.Run()
	defer ctrl.Stop()

	hotkeyCmds <- hotkey.CmdStart
	hotkeyCmds <- hotkey.CmdStop

	expected := []State{Recording, Stopping, Transcribing, Injecting, Idle}
	for _, want := range expected {
		select {
		case got := <-rec.states:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for state %s", want)
		}
	}

	select {
	case text := <-injector.got:
		assert.Equal(t, "hello world", text)
	case <-time.After(time.Second):
		t.Fatal("injector never received text")
	}
}

// TestDeviceLostMidRecordingFinalizesPartialRecording covers spec
// section 4.3's device_lost failure mode: the bound device disappeared
// mid-recording, but Stop still produced a (truncated) partial
// Recording, so the pipeline must surface device_lost as a
// notification and still transcribe/inject the partial audio rather
// than aborting to the Error state.
func TestDeviceLostMidRecordingFinalizesPartialRecording(t *testing.T) {
	capture := &mockCapture{pcm: []int16{1, 2, 3}, truncated: true, deviceLost: true}
	dispatcher := &mockDispatcher{text: "partial words"}
	injector := &mockInjector{got: make(chan string, 1)}
	hotkeyCmds := make(chan hotkey.Command, 4)
	rec := &stateRecorder{states: make(chan State, 16), errs: make(chan string, 4)}

	ctrl := New(capture, dispatcher, mockCorrector{}, injector, mockTarget{}, hotkeyCmds, rec, nil)
	go ctrl.Run()
	defer ctrl.Stop()

	hotkeyCmds <- hotkey.CmdStart
	hotkeyCmds <- hotkey.CmdStop

	expected := []State{Recording, Stopping, Transcribing, Injecting, Idle}
	for _, want := range expected {
		select {
		case got := <-rec.states:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for state %s", want)
		}
	}

	select {
	case kind := <-rec.errs:
		assert.Equal(t, "device_lost", kind)
	case <-time.After(time.Second):
		t.Fatal("expected a device_lost notification")
	}

	select {
	case text := <-injector.got:
		assert.Equal(t, "partial words", text)
	case <-time.After(time.Second):
		t.Fatal("injector never received the partial transcript")
	}
}

func TestCancelDuringRecordingDiscardsWithoutTranscription(t *testing.T) {
	capture := &mockCapture{pcm: []int16{1, 2, 3}}
	dispatcher := &mockDispatcher{text: "should not be used"}
	injector := &mockInjector{got: make(chan string, 1)}
	hotkeyCmds := make(chan hotkey.Command, 4)
	rec := &stateRecorder{states: make(chan State, 16)}

	ctrl := New(capture, dispatcher, mockCorrector{}, injector, mockTarget{}, hotkeyCmds, rec, nil)
	go ctrl.Run()
	defer ctrl.Stop()

	hotkeyCmds <- hotkey.CmdStart
	require.Equal(t, Recording, <-rec.states)
	ctrl.Submit("cancel")
	require.Equal(t, Idle, <-rec.states)

	select {
	case <-injector.got:
		t.Fatal("injector should not have been called")
	case <-time.After(200 * time.Millisecond):
	}
}
