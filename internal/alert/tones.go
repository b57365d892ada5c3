package alert

import "time"

type Waveform string

const WaveSine Waveform = "sine"

// Tone is one scheduled beep. Gain decays exponentially from GainStart to
// GainEnd over Duration.
type Tone struct {
	FrequencyHz float64
	Offset      time.Duration
	Duration    time.Duration
	Waveform    Waveform
	GainStart   float64
	GainEnd     float64
}

type Sequence []Tone

const (
	toneDuration = 300 * time.Millisecond
	toneSpacing  = 400 * time.Millisecond
	SettleDelay  = 50 * time.Millisecond
)

// DefaultSequence is the ascending three-tone new-order chime.
func DefaultSequence() Sequence {
	freqs := []float64{600, 800, 1000}
	seq := make(Sequence, 0, len(freqs))
	for i, f := range freqs {
		seq = append(seq, Tone{
			FrequencyHz: f,
			Offset:      time.Duration(i) * toneSpacing,
			Duration:    toneDuration,
			Waveform:    WaveSine,
			GainStart:   0.8,
			GainEnd:     0.01,
		})
	}
	return seq
}

// FallbackSequence is the single beep used when the chime cannot be played.
func FallbackSequence() Sequence {
	return Sequence{{
		FrequencyHz: 800,
		Duration:    toneDuration,
		Waveform:    WaveSine,
		GainStart:   0.8,
		GainEnd:     0.01,
	}}
}

func (s Sequence) Shift(d time.Duration) Sequence {
	out := make(Sequence, len(s))
	for i, t := range s {
		t.Offset += d
		out[i] = t
	}
	return out
}

// Wire renders the sequence with millisecond integers for clients.
func (s Sequence) Wire() []map[string]any {
	out := make([]map[string]any, 0, len(s))
	for _, t := range s {
		out = append(out, map[string]any{
			"frequencyHz": t.FrequencyHz,
			"offsetMs":    t.Offset.Milliseconds(),
			"durationMs":  t.Duration.Milliseconds(),
			"waveform":    t.Waveform,
			"gainStart":   t.GainStart,
			"gainEnd":     t.GainEnd,
		})
	}
	return out
}
