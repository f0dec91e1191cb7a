// Package relay rebroadcasts one upstream post stream to many websocket
// subscribers, byte for byte.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"firetunnel/capture"
	"firetunnel/feed"

	"github.com/shirou/gopsutil/v3/process"
)

// DefaultUpstream is the public Bluesky Jetstream post feed
const DefaultUpstream = "wss://jetstream2.us-east.bsky.network/subscribe?wantedCollections=app.bsky.feed.post"

// Config configures a relay Server
type Config struct {
	Listen      string
	UpstreamURL string
	// RecordPath, when set, captures every upstream frame to an lz4 file
	RecordPath string
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Stats is served on /stats
type Stats struct {
	Upstream      string  `json:"upstream"`
	Status        string  `json:"status"`
	Clients       int     `json:"clients"`
	Received      uint64  `json:"received"`
	Relayed       uint64  `json:"relayed"`
	Dropped       uint64  `json:"dropped"`
	Evicted       uint64  `json:"evicted"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpuPercent"`
	RSSBytes      uint64  `json:"rssBytes"`
}

// Server owns the hub, the upstream subscription and the HTTP endpoints
type Server struct {
	cfg      Config
	hub      *Hub
	upstream *feed.Stream
	recorder *capture.Writer
	// recordFailed stops capture after the first write error
	recordFailed atomic.Bool
	proc         *process.Process
	started      time.Time
	// upstreamDone closes once the upstream goroutine can no longer call relay
	upstreamDone chan struct{}
}

// NewServer prepares a relay; nothing runs until Start or Run
func NewServer(cfg Config) (*Server, error) {
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = DefaultUpstream
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}

	s := &Server{
		cfg: cfg,
		hub: NewHub(),
	}

	if cfg.RecordPath != "" {
		rec, err := capture.Create(cfg.RecordPath)
		if err != nil {
			return nil, err
		}
		s.recorder = rec
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Printf("[RELAY] process stats unavailable: %v", err)
	}
	s.proc = proc

	s.upstream = &feed.Stream{
		URL:        cfg.UpstreamURL,
		Name:       "UPSTREAM",
		MinBackoff: cfg.MinBackoff,
		MaxBackoff: cfg.MaxBackoff,
		Handler:    s.relay,
	}
	return s, nil
}

// relay forwards one upstream frame. The websocket reader hands out a fresh
// slice per message, so it can be shared by every subscriber.
func (s *Server) relay(msg []byte) {
	if s.recorder != nil && !s.recordFailed.Load() {
		if err := s.recorder.WriteFrame(msg); err != nil {
			log.Printf("[RELAY] capture write failed, recording stopped: %v", err)
			s.recordFailed.Store(true)
		}
	}
	s.hub.Broadcast(msg)
}

// Handler returns the HTTP routes of the relay
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/subscribe", s.hub.ServeWS)
	mux.HandleFunc("/ws", s.hub.ServeWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	status := s.upstream.Status()
	if status != feed.StatusConnected {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "upstream %s\n", status)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ready")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Stats()); err != nil {
		log.Printf("[RELAY] encode stats: %v", err)
	}
}

// Stats snapshots relay counters and process usage
func (s *Server) Stats() Stats {
	st := Stats{
		Upstream:   s.cfg.UpstreamURL,
		Status:     s.upstream.Status().String(),
		Clients:    s.hub.Clients(),
		Received:   s.upstream.Received(),
		Relayed:    s.hub.relayed.Load(),
		Dropped:    s.hub.dropped.Load(),
		Evicted:    s.hub.evicted.Load(),
		Goroutines: runtime.NumGoroutine(),
	}
	if !s.started.IsZero() {
		st.UptimeSeconds = time.Since(s.started).Seconds()
	}
	if s.proc != nil {
		if cpu, err := s.proc.CPUPercent(); err == nil {
			st.CPUPercent = cpu
		}
		if mem, err := s.proc.MemoryInfo(); err == nil {
			st.RSSBytes = mem.RSS
		}
	}
	return st
}

// Start runs the hub and the upstream subscription in the background
func (s *Server) Start(ctx context.Context) {
	s.started = time.Now()
	s.upstreamDone = make(chan struct{})
	go s.hub.Run(ctx)
	go func() {
		defer close(s.upstreamDone)
		if err := s.upstream.Run(ctx); err != nil {
			log.Printf("[RELAY] upstream stopped: %v", err)
		}
	}()
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	s.Start(ctx)

	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[RELAY] listening on %s, upstream %s", s.cfg.Listen, s.cfg.UpstreamURL)
		errCh <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}

	stop()
	if s.recorder != nil {
		<-s.upstreamDone
		if cerr := s.recorder.Close(); cerr != nil {
			log.Printf("[RELAY] close capture: %v", cerr)
		}
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
