// Package stt defines the speech-to-text Engine interface hosted by the
// fluidvoice-worker process (spec section 4.5: "the worker is
// language-agnostic at the protocol level; the dispatcher cares only
// about the wire format" — Engine is that protocol-agnostic boundary on
// the worker side).
//
// Grounded directly on emmc15-vox/internal/stt/engine.go.
package stt

// Result is one recognition result.
type Result struct {
	Text       string
	Confidence float64
	Language   string
}

// Config configures an Engine.
type Config struct {
	ModelPath  string
	SampleRate int
}

// Engine transcribes a complete utterance of 16-bit PCM audio. Unlike
// emmc15-vox's streaming Engine (ProcessAudio/FinalResult over a
// partial-result loop), FluidVoice hands the worker one full recording
// at a time (spec section 4.5's single `transcribe` op per hotkey
// session), so Engine exposes one blocking call.
type Engine interface {
	Initialize(config Config) error
	Transcribe(pcm []int16) (*Result, error)
	Close() error
}
