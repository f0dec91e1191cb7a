package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"firetunnel/capture"
)

// ReplayOptions configures a Replayer
type ReplayOptions struct {
	Path   string
	Queue  *Queue
	Filter TextFilter
	// Speed scales playback, 2 plays twice as fast. Zero means 1.
	Speed float64
	Loop  bool
}

// Replayer feeds posts from a capture file at the pace they were recorded
type Replayer struct {
	opts   ReplayOptions
	sink   sink
	status atomic.Int32
}

// NewReplayer creates a replayer; call Run to start playback
func NewReplayer(opts ReplayOptions) *Replayer {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	return &Replayer{
		opts: opts,
		sink: sink{queue: opts.Queue, filter: opts.Filter},
	}
}

// Status reports connected while frames are playing
func (r *Replayer) Status() Status {
	return Status(r.status.Load())
}

// Run plays the capture until it ends (or forever with Loop) or ctx is cancelled
func (r *Replayer) Run(ctx context.Context) error {
	defer r.status.Store(int32(StatusClosed))

	for {
		if err := r.playOnce(ctx); err != nil {
			return err
		}
		if !r.opts.Loop || ctx.Err() != nil {
			return nil
		}
	}
}

func (r *Replayer) playOnce(ctx context.Context) error {
	rd, err := capture.Open(r.opts.Path)
	if err != nil {
		return err
	}
	defer rd.Close()

	r.status.Store(int32(StatusConnected))
	start := time.Now()

	for {
		frame, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay %s: %w", r.opts.Path, err)
		}

		due := time.Duration(float64(frame.Offset) / r.opts.Speed)
		if wait := due - time.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		} else if ctx.Err() != nil {
			return nil
		}

		r.sink.handle(frame.Data)
	}
}

// Accepted returns how many posts were queued
func (r *Replayer) Accepted() uint64 {
	return r.sink.accepted.Load()
}
