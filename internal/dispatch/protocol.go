// Package dispatch implements TranscriptionDispatcher (spec section 4.5):
// a persistent child worker process hosting the speech model, talked to
// over a framed local-socket protocol, with heartbeat-based health
// tracking and crash-restart-once recovery.
//
// Grounded on the teacher's internal/transcription.Client, whose
// connection-health/session-count bookkeeping (ConnectionNeedsRefresh,
// ReportSessionSuccess/Failure) is repurposed here from a cloud
// websocket transport into a Unix-domain-socket client speaking to a
// local worker process.
package dispatch

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Op is the request op field, per spec section 4.5.
type Op string

const (
	OpTranscribe Op = "transcribe"
	OpPing       Op = "ping"
	OpShutdown   Op = "shutdown"
)

// Request is the JSON payload framed onto the wire, per spec section
// 4.5's protocol definition.
type Request struct {
	Op           Op     `json:"op"`
	ID           uint64 `json:"id"`
	PCMBase64    string `json:"pcm_b64,omitempty"`
	SampleRate   uint32 `json:"sample_rate,omitempty"`
	LanguageHint string `json:"language_hint,omitempty"`
}

// Timings reports worker-side duration breakdowns for diagnostics.
type Timings struct {
	DecodeMs int64 `json:"decode_ms"`
	TotalMs  int64 `json:"total_ms"`
}

// Response is the JSON payload the worker frames back.
type Response struct {
	ID         uint64   `json:"id"`
	OK         bool     `json:"ok"`
	Text       string   `json:"text,omitempty"`
	Language   string   `json:"language,omitempty"`
	Confidence float32  `json:"confidence,omitempty"`
	Error      string   `json:"error,omitempty"`
	Timings    *Timings `json:"timings,omitempty"`
}

// WriteFrame writes a 4-byte big-endian length prefix followed by v
// marshaled as JSON, per spec section 4.5/6.2's framing rule.
func WriteFrame(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("dispatch: marshal frame: %w", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("dispatch: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("dispatch: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed JSON frame and unmarshals it into v.
func ReadFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("dispatch: read frame payload: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("dispatch: unmarshal frame: %w", err)
	}
	return nil
}
