package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/repository/room"
)

const (
	defaultListRoomsLimit = 20
	maxListRoomsLimit     = 100
	defaultPlaybackSpeed  = 1.0
)

type CreateRoomParams struct {
	MovieID         string
	EpisodeID       string
	ParticipantID   string
	DisplayName     string
	MaxParticipants int
}

type CreateRoomResponse struct {
	Room        Room        `json:"room"`
	Participant Participant `json:"participant"`
	JWT         string      `json:"jwt"`
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	params.DisplayName = strings.TrimSpace(params.DisplayName)
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.ParticipantID, ParticipantIDRule...),
		validation.Field(&params.DisplayName, DisplayNameRule...),
		validation.Field(&params.MovieID, ContentIDRule...),
		validation.Field(&params.EpisodeID, ContentIDRule...),
		validation.Field(&params.MaxParticipants, MaxParticipantsRule...),
	); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	ref := room.ContentRef{
		MovieID:   params.MovieID,
		EpisodeID: params.EpisodeID,
	}
	if !ref.Valid() {
		return CreateRoomResponse{}, ErrInvalidContentRef
	}

	maxParticipants := params.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = s.defaultMaxParticipants
	}

	content, err := s.contentRepo.GetContent(ctx, ref)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get content", "error", err)
		if mapped := mapRepoError(err); mapped != err {
			return CreateRoomResponse{}, mapped
		}

		return CreateRoomResponse{}, fmt.Errorf("failed to get content: %w", err)
	}

	for range codeAttempts {
		code, err := s.generator.Generate(codeLength)
		if err != nil {
			return CreateRoomResponse{}, fmt.Errorf("failed to generate room code: %w", err)
		}

		roomID := uuid.NewString()
		newRoom, host, err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
			RoomID:          roomID,
			Code:            code,
			ContentRef:      ref,
			Content:         content,
			MaxParticipants: maxParticipants,
			PlaybackSpeed:   defaultPlaybackSpeed,
			RecordID:        uuid.NewString(),
			ParticipantID:   params.ParticipantID,
			DisplayName:     params.DisplayName,
			CreatedAt:       s.now(),
		})
		if err != nil {
			if errors.Is(err, room.ErrCodeTaken) || errors.Is(err, room.ErrRoomExists) {
				s.logger.DebugContext(ctx, "room code collision", "code", code)
				continue
			}

			s.logger.InfoContext(ctx, "failed to create room", "error", err)
			return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
		}

		jwt, err := s.generateJWT(newRoom.ID, host.ParticipantID)
		if err != nil {
			return CreateRoomResponse{}, fmt.Errorf("failed to generate jwt: %w", err)
		}

		return CreateRoomResponse{
			Room:        s.toRoom(newRoom),
			Participant: toParticipant(host),
			JWT:         jwt,
		}, nil
	}

	s.logger.InfoContext(ctx, "room code attempts exhausted", "attempts", codeAttempts)
	return CreateRoomResponse{}, ErrRoomCodeExhausted
}

// ResolveRoom looks up an active room by its share code. The code is matched
// case-insensitively.
func (s service) ResolveRoom(ctx context.Context, code string) (RoomWithParticipants, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !roomCodeRegexp.MatchString(code) {
		return RoomWithParticipants{}, ErrRoomNotFound
	}

	rm, err := s.roomRepo.GetRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return RoomWithParticipants{}, ErrRoomNotFound
		}

		return RoomWithParticipants{}, fmt.Errorf("failed to get room by code: %w", err)
	}

	participants, err := s.roomRepo.ListParticipants(ctx, rm.ID)
	if err != nil {
		return RoomWithParticipants{}, fmt.Errorf("failed to list participants: %w", err)
	}

	return RoomWithParticipants{
		Room:         s.toRoom(rm),
		Participants: toParticipants(participants),
	}, nil
}

func (s service) GetRoom(ctx context.Context, roomID string) (Room, error) {
	rm, err := s.getActiveRoom(ctx, roomID)
	if err != nil {
		return Room{}, err
	}

	return s.toRoom(rm), nil
}

// ListActiveRooms returns the most recently active rooms first. Out of range
// limits are clamped.
func (s service) ListActiveRooms(ctx context.Context, limit int) ([]Room, error) {
	switch {
	case limit <= 0:
		limit = defaultListRoomsLimit
	case limit > maxListRoomsLimit:
		limit = maxListRoomsLimit
	}

	rooms, err := s.roomRepo.ListActiveRooms(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}

	return s.toRooms(rooms), nil
}

func (s service) CloseRoom(ctx context.Context, roomID string) (Room, error) {
	if !isRoomID(roomID) {
		return Room{}, ErrRoomNotFound
	}

	closed, err := s.roomRepo.CloseRoom(ctx, &room.CloseRoomParams{
		RoomID:   roomID,
		ClosedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return Room{}, ErrRoomNotFound
		}

		s.logger.InfoContext(ctx, "failed to close room", "error", err)
		return Room{}, fmt.Errorf("failed to close room: %w", err)
	}

	res := s.toRoom(closed)
	s.publish(ctx, gateway.EventRoomClosed, roomID, res)

	return res, nil
}

// GetRoomState returns the snapshot sent to a new subscriber.
func (s service) GetRoomState(ctx context.Context, roomID string) (RoomState, error) {
	rm, err := s.getActiveRoom(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}

	participants, err := s.roomRepo.ListParticipants(ctx, roomID)
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to list participants: %w", err)
	}

	messages, err := s.roomRepo.ListMessages(ctx, &room.ListMessagesParams{
		RoomID: roomID,
		Limit:  defaultListMessagesLimit,
	})
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to list messages: %w", err)
	}

	return RoomState{
		Room:         s.toRoom(rm),
		Participants: toParticipants(participants),
		Messages:     toMessages(messages),
	}, nil
}
