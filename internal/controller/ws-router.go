package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/party/internal/service/room"
	"github.com/sharetube/party/pkg/wsrouter"
)

const outputError = "ERROR"

type EmptyInput struct{}

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.presenceWSMw(), c.loggerWSMw(), c.messageTimeoutWSMw())
	mux.OnError(c.handleWSError)

	// presence
	wsrouter.Handle(mux, "ALIVE", c.handleAlive)
	wsrouter.Handle(mux, "LEAVE", c.handleLeave)

	// playback
	wsrouter.Handle(mux, "UPDATE_PLAYBACK", c.handleUpdatePlayback)

	// chat
	wsrouter.Handle(mux, "POST_MESSAGE", c.handlePostMessage)

	return mux
}

func (c controller) handleWSError(ctx context.Context, _ *websocket.Conn, err error) {
	s := c.getSessionFromCtx(ctx)
	if s == nil {
		return
	}

	_, body := toErrorBody(err)
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, wsrouter.ErrUnknownMessageType):
		body = errorBody{Code: "UNKNOWN_MESSAGE_TYPE", Message: err.Error()}
	case errors.As(err, &syntaxErr) || errors.As(err, &typeErr):
		body = errorBody{Code: "INVALID_PAYLOAD", Message: err.Error()}
	}
	c.logger.InfoContext(ctx, "websocket message failed", "error", err)

	if err := s.write(&Output{Type: outputError, Payload: body}); err != nil {
		c.logger.InfoContext(ctx, "failed to write error", "error", err)
	}
}

func (c controller) handleAlive(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return c.roomService.Heartbeat(ctx, &room.HeartbeatParams{
		RoomID:        c.getRoomIDFromCtx(ctx),
		ParticipantID: c.getParticipantIDFromCtx(ctx),
	})
}

func (c controller) handleLeave(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.Leave(ctx, &room.LeaveParams{
		RoomID:        c.getRoomIDFromCtx(ctx),
		ParticipantID: c.getParticipantIDFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	if s := c.getSessionFromCtx(ctx); s != nil {
		s.close(websocket.CloseNormalClosure, "left")
	}

	return nil
}

type UpdatePlaybackInput struct {
	Position  *float64 `json:"position"`
	IsPlaying *bool    `json:"is_playing"`
	Speed     *float64 `json:"speed"`
}

func (c controller) handleUpdatePlayback(ctx context.Context, _ *websocket.Conn, input UpdatePlaybackInput) error {
	if _, err := c.roomService.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		RoomID:    c.getRoomIDFromCtx(ctx),
		Position:  input.Position,
		IsPlaying: input.IsPlaying,
		Speed:     input.Speed,
	}); err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	return nil
}

type PostMessageInput struct {
	DisplayName string `json:"display_name"`
	Body        string `json:"body"`
}

func (c controller) handlePostMessage(ctx context.Context, _ *websocket.Conn, input PostMessageInput) error {
	if _, err := c.roomService.PostMessage(ctx, &room.PostMessageParams{
		RoomID:        c.getRoomIDFromCtx(ctx),
		ParticipantID: c.getParticipantIDFromCtx(ctx),
		DisplayName:   input.DisplayName,
		Body:          input.Body,
	}); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}

	return nil
}
