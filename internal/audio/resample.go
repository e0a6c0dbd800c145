package audio

// Resampler converts interleaved multi-channel float32 samples at an
// arbitrary native rate into mono int16 samples at the canonical 16kHz,
// per spec section 4.3 item 4. Its state (the fractional phase
// accumulator) is reset on every session start, as the spec requires.
type Resampler struct {
	nativeRate float64
	channels   int
	phase      float64
	prevMono   float32
}

// NewResampler builds a Resampler for the given native device format.
func NewResampler(nativeRate float64, channels int) *Resampler {
	return &Resampler{nativeRate: nativeRate, channels: channels}
}

// Reset zeroes the phase accumulator, called at the start of every
// recording session.
func (rs *Resampler) Reset() { rs.phase = 0 }

// Process downmixes an interleaved native-format buffer to mono, then
// linearly resamples it to 16kHz, returning PCM16 samples.
func (rs *Resampler) Process(in []float32) []int16 {
	mono := rs.downmix(in)
	if rs.nativeRate == float64(TargetFormat.SampleRate) {
		out := make([]int16, len(mono))
		for i, v := range mono {
			out[i] = floatToPCM16(v)
		}
		return out
	}
	return rs.linearResample(mono)
}

func (rs *Resampler) downmix(in []float32) []float32 {
	if rs.channels <= 1 {
		return in
	}
	frames := len(in) / rs.channels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < rs.channels; c++ {
			sum += in[f*rs.channels+c]
		}
		out[f] = sum / float32(rs.channels)
	}
	return out
}

// linearResample performs simple linear interpolation from nativeRate to
// the target rate, carrying the fractional phase across calls so a
// session's samples stay continuous across successive tap buffers.
func (rs *Resampler) linearResample(mono []float32) []int16 {
	if len(mono) == 0 {
		return nil
	}
	ratio := rs.nativeRate / float64(TargetFormat.SampleRate)
	var out []int16

	pos := rs.phase
	for pos < float64(len(mono)-1) {
		i := int(pos)
		frac := pos - float64(i)
		sample := mono[i]*float32(1-frac) + mono[i+1]*float32(frac)
		out = append(out, floatToPCM16(sample))
		pos += ratio
	}
	rs.phase = pos - float64(len(mono)-1)
	if rs.phase < 0 {
		rs.phase = 0
	}
	return out
}

func floatToPCM16(v float32) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}
