package source

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"backend-mtbtrainer/internal/merge"
	"backend-mtbtrainer/internal/sensor"
)

const replayRetry = time.Millisecond

// Replay feeds a recorded export back through the pipeline. Unlike a live
// sensor it retries samples the merger dropped.
type Replay struct {
	name    string
	samples []sensor.Sample
	pace    bool

	finished chan struct{}
	once     sync.Once
}

// NewReplay replays samples in order. With pace set it sleeps for the
// timestamp delta between consecutive samples.
func NewReplay(name string, samples []sensor.Sample, pace bool) *Replay {
	return &Replay{name: name, samples: samples, pace: pace, finished: make(chan struct{})}
}

func OpenReplay(path string, pace bool) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	samples, err := sensor.DecodeAll(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return NewReplay("replay:"+path, samples, pace), nil
}

func (r *Replay) Name() string { return r.name }

func (r *Replay) Len() int { return len(r.samples) }

// Finished is closed once every sample has been handed to the merger.
func (r *Replay) Finished() <-chan struct{} { return r.finished }

func (r *Replay) Run(ctx context.Context, emit merge.Emit) error {
	var prev int64
	for i, s := range r.samples {
		if r.pace && i > 0 {
			if dt := s.Nanos() - prev; dt > 0 {
				timer := time.NewTimer(time.Duration(dt))
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		prev = s.Nanos()

		for !emit(s) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(replayRetry):
			}
		}
	}
	r.once.Do(func() { close(r.finished) })
	return nil
}
