package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/repository/content"
	"github.com/sharetube/party/internal/repository/room"
)

// mapRepoError translates store and lookup errors into the service error set.
// Unknown errors are returned as they are.
func mapRepoError(err error) error {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return ErrRoomNotFound
	case errors.Is(err, room.ErrRoomFull):
		return ErrRoomFull
	case errors.Is(err, room.ErrConflict):
		return ErrConflict
	case errors.Is(err, room.ErrParticipantNotFound):
		return ErrNotAMember
	case errors.Is(err, content.ErrContentNotFound):
		return ErrContentNotFound
	default:
		return err
	}
}

// isRoomID reports whether id can name a room at all. Malformed ids are
// answered with ErrRoomNotFound without touching the store.
func isRoomID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s service) getActiveRoom(ctx context.Context, roomID string) (room.Room, error) {
	if !isRoomID(roomID) {
		return room.Room{}, ErrRoomNotFound
	}

	rm, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		if mapped := mapRepoError(err); mapped != err {
			return room.Room{}, mapped
		}

		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if !rm.IsActive {
		return room.Room{}, ErrRoomNotFound
	}

	return rm, nil
}

func (s service) publish(ctx context.Context, eventType, roomID string, payload any) {
	s.publisher.Publish(ctx, gateway.Event{
		Type:    eventType,
		RoomID:  roomID,
		Payload: payload,
	})
}

// publishParticipants sends the current participant set of a room. Failures
// are logged since the triggering write already succeeded.
func (s service) publishParticipants(ctx context.Context, roomID string) {
	rm, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room for participants event", "error", err, "room_id", roomID)
		return
	}

	participants, err := s.roomRepo.ListParticipants(ctx, roomID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to list participants for event", "error", err, "room_id", roomID)
		return
	}

	s.publish(ctx, gateway.EventParticipantsUpdated, roomID, ParticipantsUpdated{
		Room:         s.toRoom(rm),
		Participants: toParticipants(participants),
	})
}
