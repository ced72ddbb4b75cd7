package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/service/room"
	"github.com/sharetube/party/pkg/ctxlogger"
	"github.com/sharetube/party/pkg/rest"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// session serializes writes to a single websocket connection.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) write(output *Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(output)
}

func (s *session) close(code int, text string) {
	s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeTimeout))
}

func (c controller) subscribe(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("room_id", roomID))

	claims, err := c.roomService.AuthorizeMember(ctx, roomID, r.URL.Query().Get("token"))
	if err != nil {
		c.writeError(w, r.WithContext(ctx), err)
		return
	}
	ctx = ctxlogger.AppendCtx(ctx, slog.String("participant_id", claims.ParticipantID))

	// subscribe before taking the snapshot so nothing between the two is lost
	sub := c.hub.Subscribe(roomID)
	defer sub.Close()

	state, err := c.roomService.GetRoomState(ctx, roomID)
	if err != nil {
		status, body := toErrorBody(err)
		rest.WriteJSON(w, status, rest.Envelope{"error": body})
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	s := &session{conn: conn}
	if err := s.write(&Output{Type: gateway.EventRoomState, Payload: state}); err != nil {
		c.logger.WarnContext(ctx, "failed to write room state", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if err := c.roomService.Heartbeat(ctx, &room.HeartbeatParams{
			RoomID:        roomID,
			ParticipantID: claims.ParticipantID,
		}); err != nil {
			c.logger.InfoContext(ctx, "failed to refresh presence on pong", "error", err)
		}

		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx, s, sub)
	}()

	ctx = context.WithValue(ctx, roomIDCtxKey, roomID)
	ctx = context.WithValue(ctx, participantIDCtxKey, claims.ParticipantID)
	ctx = context.WithValue(ctx, sessionCtxKey, s)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "websocket closed", "error", err, "dropped_events", sub.Dropped())
	}

	cancel()
	wg.Wait()
}

// writeLoop forwards room events to the connection and keeps it alive with
// pings. It returns when ctx is done or the connection fails.
func (c controller) writeLoop(ctx context.Context, s *session, sub *gateway.Subscription) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}

			if err := s.write(&Output{Type: ev.Type, Payload: ev.Payload}); err != nil {
				c.logger.InfoContext(ctx, "failed to write event", "error", err, "type", ev.Type)
				s.conn.Close()
				return
			}

			if ev.Type == gateway.EventRoomClosed {
				s.close(websocket.CloseNormalClosure, "room closed")
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.logger.InfoContext(ctx, "failed to ping", "error", err)
				s.conn.Close()
				return
			}
		}
	}
}
