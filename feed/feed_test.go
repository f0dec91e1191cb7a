package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"firetunnel/capture"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	postEvent    = `{"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","record":{"text":"hello world"}}}`
	likeEvent    = `{"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.like","record":{}}}`
	deleteEvent  = `{"kind":"commit","commit":{"operation":"delete","collection":"app.bsky.feed.post"}}`
	accountEvent = `{"kind":"account","account":{"active":true}}`
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"post", postEvent, "hello world", true},
		{"flat", `{"text":"flat post"}`, "flat post", true},
		{"like", likeEvent, "", false},
		{"delete", deleteEvent, "", false},
		{"account", accountEvent, "", false},
		{"blank text", `{"text":"   "}`, "", false},
		{"no text", `{"kind":"commit"}`, "", false},
		{"not json", `hello`, "", false},
		{"wrong kind", `{"kind":"identity","commit":{"operation":"create","collection":"app.bsky.feed.post","record":{"text":"x"}}}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractText([]byte(tt.raw))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueue_PushDrain(t *testing.T) {
	q := NewQueue(3)

	assert.True(t, q.Push("a"))
	assert.True(t, q.Push("b"))
	assert.True(t, q.Push("c"))
	assert.False(t, q.Push("d"))
	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, 3, q.Len())

	got := q.Drain(nil, 2)
	assert.Equal(t, []string{"a", "b"}, got)

	got = q.Drain(got[:0], 0)
	assert.Equal(t, []string{"c"}, got)
	assert.Empty(t, q.Drain(nil, 0))
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue(10000)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Push("x")
			}
		}()
	}
	wg.Wait()
	assert.Len(t, q.Drain(nil, 0), 8000)
}

type denyFilter struct{ word string }

func (f denyFilter) Allow(text string) (bool, error) {
	return !strings.Contains(text, f.word), nil
}

type brokenFilter struct{}

func (brokenFilter) Allow(string) (bool, error) {
	return false, errors.New("script exploded")
}

// wsServer upgrades every connection and sends the scripted messages, then
// closes the connection when closeAfter is set
func wsServer(t *testing.T, messages []string, closeAfter bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		if closeAfter {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_QueuesPosts(t *testing.T) {
	srv := wsServer(t, []string{
		postEvent,
		likeEvent,
		`{"text":"buy spam now"}`,
		`{"text":"second post"}`,
	}, false)

	q := NewQueue(16)
	c := NewClient(ClientOptions{
		URL:    wsURL(srv),
		Queue:  q,
		Filter: denyFilter{word: "spam"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return q.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusConnected, c.Status())
	assert.Equal(t, []string{"hello world", "second post"}, q.Drain(nil, 0))
	assert.Equal(t, uint64(2), c.Accepted())
	assert.Equal(t, uint64(1), c.Rejected())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
	assert.Equal(t, StatusClosed, c.Status())
}

func TestClient_FilterErrorRejects(t *testing.T) {
	srv := wsServer(t, []string{postEvent}, false)
	q := NewQueue(4)
	c := NewClient(ClientOptions{URL: wsURL(srv), Queue: q, Filter: brokenFilter{}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool { return c.Rejected() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

func TestClient_Reconnects(t *testing.T) {
	srv := wsServer(t, []string{postEvent}, true)

	q := NewQueue(64)
	c := NewClient(ClientOptions{
		URL:        wsURL(srv),
		Queue:      q,
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// every reconnect replays the scripted post
	require.Eventually(t, func() bool { return c.Accepted() >= 3 }, 3*time.Second, 10*time.Millisecond)
}

func TestClient_ReportsReconnectingWhileDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(ClientOptions{
		URL:        wsURL(srv),
		Queue:      NewQueue(1),
		MinBackoff: 10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool { return c.Status() == StatusReconnecting }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_RecordsRawFrames(t *testing.T) {
	srv := wsServer(t, []string{postEvent, likeEvent}, false)
	path := filepath.Join(t.TempDir(), "rec.ftcap")
	rec, err := capture.Create(path)
	require.NoError(t, err)

	q := NewQueue(4)
	c := NewClient(ClientOptions{URL: wsURL(srv), Queue: q, Recorder: rec})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.stream.Received() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	require.NoError(t, rec.Close())

	r, err := capture.Open(path)
	require.NoError(t, err)
	defer r.Close()
	f1, err := r.Next()
	require.NoError(t, err)
	f2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, postEvent, string(f1.Data))
	assert.Equal(t, likeEvent, string(f2.Data))
}

func TestStream_RejectsBadConfig(t *testing.T) {
	assert.Error(t, (&Stream{Handler: func([]byte) {}}).Run(context.Background()))
	assert.Error(t, (&Stream{URL: "ws://localhost:1"}).Run(context.Background()))
}

func TestReplayer_PlaysCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.ftcap")
	w, err := capture.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame([]byte(postEvent)))
	require.NoError(t, w.WriteFrame([]byte(likeEvent)))
	require.NoError(t, w.WriteFrame([]byte(`{"text":"from disk"}`)))
	require.NoError(t, w.Close())

	q := NewQueue(8)
	r := NewReplayer(ReplayOptions{Path: path, Queue: q, Speed: 100})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, StatusClosed, r.Status())
	assert.Equal(t, []string{"hello world", "from disk"}, q.Drain(nil, 0))
	assert.Equal(t, uint64(2), r.Accepted())
}

func TestReplayer_LoopStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.ftcap")
	w, err := capture.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame([]byte(postEvent)))
	require.NoError(t, w.Close())

	q := NewQueue(1 << 16)
	r := NewReplayer(ReplayOptions{Path: path, Queue: q, Loop: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return q.Len() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("replayer did not stop")
	}
}

func TestReplayer_MissingFile(t *testing.T) {
	r := NewReplayer(ReplayOptions{Path: filepath.Join(t.TempDir(), "nope"), Queue: NewQueue(1)})
	assert.Error(t, r.Run(context.Background()))
}
