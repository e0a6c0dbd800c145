// Package audio implements DevicePicker and CaptureEngine (spec sections
// 4.2 and 4.3): direct hardware-bound device enumeration, a lock-free
// capture ring buffer, RMS level metering, and resampling to the
// canonical 16kHz mono PCM16 format. It generalizes the teacher's
// internal/audio/recorder.go, which opened PortAudio's default stream
// unconditionally; here the stream is always bound to a specific
// *Device chosen by the picker.
package audio

import "time"

// Transport classifies how an AudioDevice is attached, per spec section 3.
type Transport string

const (
	TransportBuiltin     Transport = "builtin"
	TransportUSB         Transport = "usb"
	TransportThunderbolt Transport = "thunderbolt"
	TransportFirewire    Transport = "firewire"
	TransportPCI         Transport = "pci"
	TransportHDMI        Transport = "hdmi"
	TransportBluetooth   Transport = "bluetooth"
	TransportVirtual     Transport = "virtual"
	TransportAggregate   Transport = "aggregate"
	TransportOther       Transport = "other"
)

// Device is AudioDevice from spec section 3: immutable once enumerated,
// invalidated only by removal from the candidate set.
type Device struct {
	ID                int
	StableUID         string
	HumanName         string
	Transport         Transport
	InputChannelCount int
	NativeSampleRate  float64
}

// TargetFormat is the canonical PCM format every Recording must satisfy
// (spec section 3 invariant 6).
var TargetFormat = struct {
	SampleRate int
	Channels   int
}{SampleRate: 16000, Channels: 1}

// Recording is spec section 3's Recording entity: a finite, immutable
// sequence of 16kHz mono PCM16 samples.
type Recording struct {
	ID        uint64
	StartedAt time.Time
	StoppedAt time.Time
	PCM       []int16
	Truncated bool
}

// DurationMs reports the recording's length in milliseconds, derived
// from sample count rather than wall-clock start/stop (which would
// double-count any time spent draining the ring on stop).
func (r Recording) DurationMs() int64 {
	return int64(len(r.PCM)) * 1000 / int64(TargetFormat.SampleRate)
}
