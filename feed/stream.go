// Package feed subscribes to the post stream and hands post text to the render loop.
package feed

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Status is the connection state of a source
type Status int32

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusReconnecting
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 10 * time.Second

	maxMessageSize = 1 << 20
)

// Stream keeps a websocket subscription open, reconnecting with exponential
// backoff, and hands every message to Handler verbatim. Handler runs on the
// stream goroutine and must not block.
type Stream struct {
	URL        string
	Name       string
	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Handler    func(msg []byte)

	status   atomic.Int32
	received atomic.Uint64
}

// Status returns the current connection state
func (s *Stream) Status() Status {
	return Status(s.status.Load())
}

// Received returns how many messages arrived since start
func (s *Stream) Received() uint64 {
	return s.received.Load()
}

// Run subscribes until ctx is cancelled. It only returns an error for an
// unusable configuration; dial and read failures are retried.
func (s *Stream) Run(ctx context.Context) error {
	if s.URL == "" {
		return errors.New("stream: empty URL")
	}
	if s.Handler == nil {
		return errors.New("stream: nil handler")
	}

	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	minBackoff, maxBackoff := s.MinBackoff, s.MaxBackoff
	if minBackoff <= 0 {
		minBackoff = DefaultMinBackoff
	}
	if maxBackoff < minBackoff {
		maxBackoff = max(DefaultMaxBackoff, minBackoff)
	}

	s.status.Store(int32(StatusConnecting))
	defer s.status.Store(int32(StatusClosed))

	backoff := minBackoff
	for {
		conn, _, err := dialer.DialContext(ctx, s.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[%s] dial %s failed: %v (retry in %s)", s.name(), s.URL, err, backoff)
		} else {
			log.Printf("[%s] connected to %s", s.name(), s.URL)
			s.status.Store(int32(StatusConnected))
			backoff = minBackoff
			s.readLoop(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[%s] connection to %s lost (retry in %s)", s.name(), s.URL, backoff)
		}

		s.status.Store(int32(StatusReconnecting))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer func() {
		stop()
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[%s] read error: %v", s.name(), err)
			}
			return
		}
		s.received.Add(1)
		s.Handler(msg)
	}
}

func (s *Stream) name() string {
	if s.Name == "" {
		return "STREAM"
	}
	return s.Name
}
