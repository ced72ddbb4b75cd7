package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/repository/room"
	"github.com/sharetube/party/pkg/randstr"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrContentNotFound   = errors.New("content not found")
	ErrRoomFull          = errors.New("room is full")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrInvalidContentRef = errors.New("exactly one of movie_id and episode_id must be set")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrValidation        = errors.New("validation failed")
	ErrNotAMember        = errors.New("not a member of the room")
	ErrRoomCodeExhausted = errors.New("failed to generate a unique room code")
	ErrInvalidToken      = errors.New("invalid member token")
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
	codeAttempts = 5
)

type iRoomRepo interface {
	// room
	CreateRoom(context.Context, *room.CreateRoomParams) (room.Room, room.Participant, error)
	GetRoom(ctx context.Context, roomID string) (room.Room, error)
	GetRoomByCode(ctx context.Context, code string) (room.Room, error)
	ListActiveRooms(ctx context.Context, limit int) ([]room.Room, error)
	ListActiveRoomIDs(ctx context.Context) ([]string, error)
	CloseRoom(context.Context, *room.CloseRoomParams) (room.Room, error)
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) (room.Room, error)
	// participant
	JoinRoom(context.Context, *room.JoinRoomParams) (room.Participant, bool, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	TouchParticipant(context.Context, *room.TouchParticipantParams) error
	GetParticipant(ctx context.Context, roomID, participantID string) (room.Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]room.Participant, error)
	// message
	AddMessage(context.Context, *room.AddMessageParams) (room.Message, error)
	ListMessages(context.Context, *room.ListMessagesParams) ([]room.Message, error)
}

type iContentRepo interface {
	GetContent(context.Context, room.ContentRef) (room.Content, error)
}

type iPublisher interface {
	Publish(context.Context, gateway.Event)
}

type iGenerator interface {
	Generate(n int) (string, error)
}

type Config struct {
	Secret                 string
	BaseURL                string
	DefaultMaxParticipants int
	MemberTokenTTL         time.Duration
	ParticipantStaleAfter  time.Duration
	RoomIdleAfter          time.Duration
}

type service struct {
	roomRepo    iRoomRepo
	contentRepo iContentRepo
	publisher   iPublisher
	generator   iGenerator
	now         func() time.Time
	logger      *slog.Logger
	secret      []byte
	baseURL     string

	defaultMaxParticipants int
	memberTokenTTL         time.Duration
	participantStaleAfter  time.Duration
	roomIdleAfter          time.Duration
}

func New(roomRepo iRoomRepo, contentRepo iContentRepo, publisher iPublisher, cfg *Config, logger *slog.Logger) *service {
	return &service{
		roomRepo:               roomRepo,
		contentRepo:            contentRepo,
		publisher:              publisher,
		generator:              randstr.New(codeAlphabet),
		now:                    time.Now,
		logger:                 logger,
		secret:                 []byte(cfg.Secret),
		baseURL:                cfg.BaseURL,
		defaultMaxParticipants: cfg.DefaultMaxParticipants,
		memberTokenTTL:         cfg.MemberTokenTTL,
		participantStaleAfter:  cfg.ParticipantStaleAfter,
		roomIdleAfter:          cfg.RoomIdleAfter,
	}
}
