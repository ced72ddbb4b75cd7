package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/service/room"
	"github.com/sharetube/party/pkg/validator"
	"github.com/sharetube/party/pkg/wsrouter"
)

const (
	pingInterval = 15 * time.Second
	readTimeout  = 2 * pingInterval
	writeTimeout = 10 * time.Second
)

type iRoomService interface {
	// registry
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	ResolveRoom(ctx context.Context, code string) (room.RoomWithParticipants, error)
	GetRoom(ctx context.Context, roomID string) (room.Room, error)
	ListActiveRooms(ctx context.Context, limit int) ([]room.Room, error)
	CloseRoom(ctx context.Context, roomID string) (room.Room, error)
	GetRoomState(ctx context.Context, roomID string) (room.RoomState, error)
	// participants
	Join(context.Context, *room.JoinParams) (room.JoinResponse, error)
	Leave(context.Context, *room.LeaveParams) error
	ListParticipants(ctx context.Context, roomID string) ([]room.Participant, error)
	Heartbeat(context.Context, *room.HeartbeatParams) error
	AuthorizeMember(ctx context.Context, roomID, token string) (room.MemberClaims, error)
	// playback
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) (room.Room, error)
	// messages
	PostMessage(context.Context, *room.PostMessageParams) (room.Message, error)
	ListMessages(context.Context, *room.ListMessagesParams) ([]room.Message, error)
}

type iHub interface {
	Subscribe(roomID string) *gateway.Subscription
}

type controller struct {
	roomService iRoomService
	hub         iHub
	upgrader    websocket.Upgrader
	wsmux       *wsrouter.WSRouter
	validate    *validator.Validator
	logger      *slog.Logger
}

func NewController(roomService iRoomService, hub iHub, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		hub:         hub,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
