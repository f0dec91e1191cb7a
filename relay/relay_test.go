package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"firetunnel/capture"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream sends everything written to out to whoever connects
type fakeUpstream struct {
	srv *httptest.Server
	out chan []byte
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	up := &fakeUpstream{out: make(chan []byte, 16)}
	upgrader := websocket.Upgrader{}
	up.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for msg := range up.out {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(func() {
		close(up.out)
		up.srv.Close()
	})
	return up
}

func wsURL(url string) string {
	return "ws" + strings.TrimPrefix(url, "http")
}

func startRelay(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Start(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func subscribe(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base)+"/subscribe", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRelay_FansOutVerbatim(t *testing.T) {
	up := newFakeUpstream(t)
	s, srv := startRelay(t, Config{UpstreamURL: wsURL(up.srv.URL)})

	require.Eventually(t, func() bool {
		code, _ := get(t, srv.URL+"/readyz")
		return code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	a := subscribe(t, srv.URL)
	b := subscribe(t, srv.URL)
	require.Eventually(t, func() bool { return s.hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	frames := []string{
		`{"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","record":{"text":"hi"}}}`,
		`not even json, still forwarded`,
	}
	for _, f := range frames {
		up.out <- []byte(f)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		for _, want := range frames {
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, got, err := conn.ReadMessage()
			require.NoError(t, err)
			assert.Equal(t, want, string(got))
		}
	}

	require.Eventually(t, func() bool { return s.Stats().Relayed == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(2), s.Stats().Received)
}

func TestRelay_Probes(t *testing.T) {
	// nothing listens here, so the upstream never connects
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	_, srv := startRelay(t, Config{UpstreamURL: wsURL(dead.URL), MinBackoff: 10 * time.Millisecond})

	code, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	code, body = get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "upstream")
}

func TestRelay_StatsEndpoint(t *testing.T) {
	up := newFakeUpstream(t)
	_, srv := startRelay(t, Config{UpstreamURL: wsURL(up.srv.URL)})
	subscribe(t, srv.URL)

	require.Eventually(t, func() bool {
		_, body := get(t, srv.URL+"/stats")
		var st Stats
		if err := json.Unmarshal([]byte(body), &st); err != nil {
			return false
		}
		return st.Clients == 1 && st.Status == "connected"
	}, 2*time.Second, 10*time.Millisecond)

	_, body := get(t, srv.URL+"/stats")
	var st Stats
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, wsURL(up.srv.URL), st.Upstream)
	assert.Greater(t, st.Goroutines, 0)
}

func TestRelay_RecordsUpstream(t *testing.T) {
	up := newFakeUpstream(t)
	path := filepath.Join(t.TempDir(), "relay.ftcap")
	s, srv := startRelay(t, Config{UpstreamURL: wsURL(up.srv.URL), RecordPath: path})

	require.Eventually(t, func() bool {
		code, _ := get(t, srv.URL+"/readyz")
		return code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	up.out <- []byte(`{"text":"kept"}`)
	require.Eventually(t, func() bool { return s.Stats().Received == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.recorder.Close())

	r, err := capture.Open(path)
	require.NoError(t, err)
	defer r.Close()
	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"text":"kept"}`, string(f.Data))
}

func TestHub_DisconnectsOnShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	for i := 0; i < broadcastBuffer; i++ {
		assert.True(t, hub.Broadcast([]byte("x")))
	}
	// nobody drains the hub, so the buffer fills
	assert.False(t, hub.Broadcast([]byte("x")))
	assert.Equal(t, uint64(1), hub.dropped.Load())
}

// floodUpstream writes size-byte frames as fast as the connection allows
func floodUpstream(t *testing.T, size int) *httptest.Server {
	t.Helper()
	frame := []byte(strings.Repeat("p", size))
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_RunClosesCaptureAfterUpstream(t *testing.T) {
	up := floodUpstream(t, 64<<10)
	dir := t.TempDir()

	for i := 0; i < 20; i++ {
		path := filepath.Join(dir, fmt.Sprintf("run%d.ftcap", i))
		s, err := NewServer(Config{
			Listen:      "127.0.0.1:0",
			UpstreamURL: wsURL(up.URL),
			RecordPath:  path,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		time.Sleep(30 * time.Millisecond)
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
		}

		r, err := capture.Open(path)
		require.NoError(t, err)
		for {
			_, err = r.Next()
			if err != nil {
				break
			}
		}
		assert.ErrorIs(t, err, io.EOF, "capture %d should end cleanly", i)
		r.Close()
	}
}
