package stt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// VoskEngine implements Engine using Vosk. Grounded on
// emmc15-vox/internal/stt/vosk_engine.go, collapsed from its
// ProcessAudio/FinalResult two-step streaming API (appropriate for a
// live microphone tap) into one Transcribe call, since the worker
// always receives a complete, already-captured recording.
type VoskEngine struct {
	mu          sync.Mutex
	model       *vosk.VoskModel
	recognizer  *vosk.VoskRecognizer
	initialized bool
}

type voskResult struct {
	Text   string `json:"text"`
	Result []struct {
		Conf float64 `json:"conf"`
	} `json:"result,omitempty"`
}

func NewVoskEngine() *VoskEngine {
	return &VoskEngine{}
}

func (v *VoskEngine) Initialize(config Config) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.initialized {
		return fmt.Errorf("vosk engine already initialized")
	}

	vosk.SetLogLevel(-1)

	model, err := vosk.NewModel(config.ModelPath)
	if err != nil {
		return fmt.Errorf("load model from %s: %w", config.ModelPath, err)
	}
	v.model = model

	recognizer, err := vosk.NewRecognizer(model, float64(config.SampleRate))
	if err != nil {
		model.Free()
		return fmt.Errorf("create recognizer: %w", err)
	}
	recognizer.SetWords(1)
	v.recognizer = recognizer
	v.initialized = true
	return nil
}

// Transcribe feeds the entire recording to the recognizer in one shot
// and reads back the final result, per the worker's one-shot-per-request
// protocol (spec section 4.5).
func (v *VoskEngine) Transcribe(pcm []int16) (*Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return nil, fmt.Errorf("vosk engine not initialized")
	}

	v.recognizer.AcceptWaveform(pcm16ToBytes(pcm))
	resultJSON := v.recognizer.FinalResult()

	var parsed voskResult
	if err := json.Unmarshal([]byte(resultJSON), &parsed); err != nil {
		return nil, fmt.Errorf("parse vosk result: %w", err)
	}

	return &Result{
		Text:       parsed.Text,
		Confidence: averageConfidence(parsed.Result),
	}, nil
}

func (v *VoskEngine) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.recognizer != nil {
		v.recognizer.Free()
		v.recognizer = nil
	}
	if v.model != nil {
		v.model.Free()
		v.model = nil
	}
	v.initialized = false
	return nil
}

func averageConfidence(words []struct {
	Conf float64 `json:"conf"`
}) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Conf
	}
	return sum / float64(len(words))
}

func pcm16ToBytes(pcm []int16) []byte {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
