package wsrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text string `json:"text"`
}

func TestServeConn(t *testing.T) {
	var (
		mu     sync.Mutex
		types  []string
		errs   []error
		served = make(chan struct{})
	)

	router := New()
	router.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			mu.Lock()
			types = append(types, GetMessageTypeFromCtx(ctx))
			mu.Unlock()
			return next(ctx, conn, payload)
		}
	})
	router.OnError(func(ctx context.Context, conn *websocket.Conn, err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	Handle(router, "ECHO", func(ctx context.Context, conn *websocket.Conn, in echoInput) error {
		return conn.WriteJSON(map[string]string{"text": strings.ToUpper(in.Text)})
	})
	Handle(router, "FAIL", func(ctx context.Context, conn *websocket.Conn, _ struct{}) error {
		return errors.New("boom")
	})

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		router.ServeConn(context.Background(), conn)
		close(served)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "UNKNOWN"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "FAIL"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ECHO", "payload": map[string]any{"text": 5}}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ECHO", "payload": map[string]any{"text": "hi"}}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var out map[string]string
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "HI", out["text"])

	conn.Close()
	<-served

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"FAIL", "ECHO"}, types)
	require.Len(t, errs, 3)
	assert.ErrorIs(t, errs[0], ErrUnknownMessageType)
	assert.EqualError(t, errs[1], "boom")
	assert.Contains(t, errs[2].Error(), "failed to decode ECHO payload")
}
