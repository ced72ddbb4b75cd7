package controller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/party/pkg/ctxlogger"
	"github.com/sharetube/party/pkg/wsrouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newLoggedController(out *syncBuffer) *controller {
	logger := slog.New(ctxlogger.ContextHandler{Handler: slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})})
	return NewController(nil, nil, logger)
}

func TestMessageTimeoutWSMw(t *testing.T) {
	c := newLoggedController(&syncBuffer{})

	var deadline time.Time
	h := c.messageTimeoutWSMw()(func(ctx context.Context, _ *websocket.Conn, _ any) error {
		var ok bool
		deadline, ok = ctx.Deadline()
		assert.True(t, ok)
		return nil
	})

	require.NoError(t, h(context.Background(), nil, nil))
	assert.WithinDuration(t, time.Now().Add(messageTimeout), deadline, time.Second)
}

func TestLoggerWSMwKeepsError(t *testing.T) {
	out := &syncBuffer{}
	c := newLoggedController(out)

	want := errors.New("boom")
	h := c.loggerWSMw()(func(context.Context, *websocket.Conn, any) error {
		return want
	})

	assert.Equal(t, want, h(context.Background(), nil, nil))
	assert.Contains(t, out.String(), "websocket message handled")
	assert.Contains(t, out.String(), `"failed":true`)
}

func TestWSMiddlewaresOverConn(t *testing.T) {
	out := &syncBuffer{}
	c := newLoggedController(out)

	handled := make(chan string, 2)
	mux := wsrouter.New()
	mux.Use(c.presenceWSMw(), c.loggerWSMw(), c.messageTimeoutWSMw())
	wsrouter.Handle(mux, "ALIVE", func(context.Context, *websocket.Conn, EmptyInput) error {
		handled <- "ALIVE"
		return nil
	})
	wsrouter.Handle(mux, "POST_MESSAGE", func(context.Context, *websocket.Conn, PostMessageInput) error {
		handled <- "POST_MESSAGE"
		return nil
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := c.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		mux.ServeConn(r.Context(), conn)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ALIVE"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "POST_MESSAGE", "payload": map[string]string{"body": "hi"}}))

	for _, want := range []string{"ALIVE", "POST_MESSAGE"} {
		select {
		case got := <-handled:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s was not handled", want)
		}
	}

	// the log line is written after the handler returns
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"message_type":"POST_MESSAGE"`)
	}, time.Second, 10*time.Millisecond)
	assert.NotContains(t, out.String(), `"message_type":"ALIVE"`)
}
