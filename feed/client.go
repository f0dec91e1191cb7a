package feed

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"firetunnel/capture"
)

// TextFilter decides whether a post is shown
type TextFilter interface {
	Allow(text string) (bool, error)
}

// Source produces post text into a queue until its context ends
type Source interface {
	Run(ctx context.Context) error
	Status() Status
}

// sink decodes raw messages and enqueues the post text that passes the filter
type sink struct {
	queue    *Queue
	filter   TextFilter
	accepted atomic.Uint64
	rejected atomic.Uint64
	warned   atomic.Bool
}

func (s *sink) handle(raw []byte) {
	text, ok := ExtractText(raw)
	if !ok {
		return
	}
	if s.filter != nil {
		allow, err := s.filter.Allow(text)
		if err != nil && !s.warned.Swap(true) {
			log.Printf("[FEED] filter error, rejecting posts that fail: %v", err)
		}
		if !allow {
			s.rejected.Add(1)
			return
		}
	}
	if s.queue.Push(text) {
		s.accepted.Add(1)
	}
}

// ClientOptions configures a Client
type ClientOptions struct {
	URL        string
	Queue      *Queue
	Filter     TextFilter
	Recorder   *capture.Writer
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Client subscribes to a relay or the upstream feed directly
type Client struct {
	stream   Stream
	sink     sink
	recorder *capture.Writer
}

// NewClient creates a client; call Run to connect
func NewClient(opts ClientOptions) *Client {
	c := &Client{
		sink:     sink{queue: opts.Queue, filter: opts.Filter},
		recorder: opts.Recorder,
	}
	c.stream = Stream{
		URL:        opts.URL,
		Name:       "FEED",
		MinBackoff: opts.MinBackoff,
		MaxBackoff: opts.MaxBackoff,
		Handler:    c.handle,
	}
	return c
}

func (c *Client) handle(raw []byte) {
	if c.recorder != nil {
		if err := c.recorder.WriteFrame(raw); err != nil {
			log.Printf("[FEED] capture write failed, recording stopped: %v", err)
			c.recorder = nil
		}
	}
	c.sink.handle(raw)
}

// Run connects and keeps reconnecting until ctx is cancelled
func (c *Client) Run(ctx context.Context) error {
	return c.stream.Run(ctx)
}

// Status returns the connection state
func (c *Client) Status() Status {
	return c.stream.Status()
}

// Accepted returns how many posts were queued
func (c *Client) Accepted() uint64 {
	return c.sink.accepted.Load()
}

// Rejected returns how many posts the filter refused
func (c *Client) Rejected() uint64 {
	return c.sink.rejected.Load()
}
