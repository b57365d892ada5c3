package alert

import (
	"context"
	"errors"
	"sync"
	"time"
)

type OutputState string

const (
	OutputRunning   OutputState = "running"
	OutputSuspended OutputState = "suspended"
	OutputClosed    OutputState = "closed"
)

// AudioOutput is the device-side audio context.
type AudioOutput interface {
	State() OutputState
	Resume(ctx context.Context) error
	Schedule(ctx context.Context, seq Sequence) error
}

var (
	ErrUnarmed      = errors.New("audio output is not armed")
	ErrOutputClosed = errors.New("audio output is closed")
)

// AudioSink owns a single lazily created AudioOutput. It stays Unarmed until
// Arm is called from a user interaction.
type AudioSink struct {
	mu        sync.Mutex
	newOutput func() (AudioOutput, error)
	output    AudioOutput
	settle    time.Duration
}

func NewAudioSink(newOutput func() (AudioOutput, error)) *AudioSink {
	return &AudioSink{newOutput: newOutput, settle: SettleDelay}
}

func (s *AudioSink) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output != nil
}

// Arm creates the output on first call; later calls reuse it.
func (s *AudioSink) Arm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output != nil {
		return nil
	}
	if s.newOutput == nil {
		return ErrUnarmed
	}
	out, err := s.newOutput()
	if err != nil {
		return err
	}
	s.output = out
	return nil
}

func (s *AudioSink) PlayTones(ctx context.Context, seq Sequence) error {
	s.mu.Lock()
	out := s.output
	s.mu.Unlock()
	if out == nil {
		return ErrUnarmed
	}

	switch out.State() {
	case OutputClosed:
		return ErrOutputClosed
	case OutputSuspended:
		if err := out.Resume(ctx); err != nil {
			return err
		}
		seq = seq.Shift(s.settle)
	}
	return out.Schedule(ctx, seq)
}
