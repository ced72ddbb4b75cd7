package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/sharetube/party/internal/repository/room"
)

type JoinParams struct {
	RoomID        string
	ParticipantID string
	DisplayName   string
}

type JoinResponse struct {
	Room        Room        `json:"room"`
	Participant Participant `json:"participant"`
	JWT         string      `json:"jwt"`
}

// Join adds the participant to the room. Joining again with the same
// participant id refreshes the existing membership instead.
func (s service) Join(ctx context.Context, params *JoinParams) (JoinResponse, error) {
	params.DisplayName = strings.TrimSpace(params.DisplayName)
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.ParticipantID, ParticipantIDRule...),
		validation.Field(&params.DisplayName, DisplayNameRule...),
	); err != nil {
		return JoinResponse{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if !isRoomID(params.RoomID) {
		return JoinResponse{}, ErrRoomNotFound
	}

	participant, created, err := s.roomRepo.JoinRoom(ctx, &room.JoinRoomParams{
		RoomID:        params.RoomID,
		RecordID:      uuid.NewString(),
		ParticipantID: params.ParticipantID,
		DisplayName:   params.DisplayName,
		JoinedAt:      s.now(),
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to join room", "error", err)
		if mapped := mapRepoError(err); mapped != err {
			return JoinResponse{}, mapped
		}

		return JoinResponse{}, fmt.Errorf("failed to join room: %w", err)
	}

	rm, err := s.roomRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		return JoinResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	jwt, err := s.generateJWT(params.RoomID, participant.ParticipantID)
	if err != nil {
		return JoinResponse{}, fmt.Errorf("failed to generate jwt: %w", err)
	}

	if created {
		s.publishParticipants(ctx, params.RoomID)
	}

	return JoinResponse{
		Room:        s.toRoom(rm),
		Participant: toParticipant(participant),
		JWT:         jwt,
	}, nil
}

type LeaveParams struct {
	RoomID        string
	ParticipantID string
}

// Leave removes the participant. Leaving a room the participant is not in is
// not an error.
func (s service) Leave(ctx context.Context, params *LeaveParams) error {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.ParticipantID, ParticipantIDRule...),
	); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if !isRoomID(params.RoomID) {
		return nil
	}

	err := s.roomRepo.LeaveRoom(ctx, &room.LeaveRoomParams{
		RoomID:        params.RoomID,
		ParticipantID: params.ParticipantID,
		LeftAt:        s.now(),
	})
	if err != nil {
		if errors.Is(err, room.ErrParticipantNotFound) {
			return nil
		}

		s.logger.InfoContext(ctx, "failed to leave room", "error", err)
		return fmt.Errorf("failed to leave room: %w", err)
	}

	s.publishParticipants(ctx, params.RoomID)

	return nil
}

func (s service) ListParticipants(ctx context.Context, roomID string) ([]Participant, error) {
	if _, err := s.getActiveRoom(ctx, roomID); err != nil {
		return nil, err
	}

	participants, err := s.roomRepo.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	return toParticipants(participants), nil
}

type HeartbeatParams struct {
	RoomID        string
	ParticipantID string
}

func (s service) Heartbeat(ctx context.Context, params *HeartbeatParams) error {
	if _, err := s.getActiveRoom(ctx, params.RoomID); err != nil {
		return err
	}

	err := s.roomRepo.TouchParticipant(ctx, &room.TouchParticipantParams{
		RoomID:        params.RoomID,
		ParticipantID: params.ParticipantID,
		SeenAt:        s.now(),
	})
	if err != nil {
		if errors.Is(err, room.ErrParticipantNotFound) {
			return ErrNotAMember
		}

		return fmt.Errorf("failed to touch participant: %w", err)
	}

	return nil
}

// PruneStale removes every participant of the room not seen since before and
// returns how many were removed.
func (s service) PruneStale(ctx context.Context, roomID string, before time.Time) (int, error) {
	participants, err := s.roomRepo.ListParticipants(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("failed to list participants: %w", err)
	}

	var pruned int
	for _, p := range participants {
		if !p.LastSeen.Before(before) {
			continue
		}

		err := s.roomRepo.LeaveRoom(ctx, &room.LeaveRoomParams{
			RoomID:        roomID,
			ParticipantID: p.ParticipantID,
			LeftAt:        s.now(),
			SeenBefore:    before,
		})
		if err != nil {
			// seen again or gone since the listing
			if errors.Is(err, room.ErrParticipantActive) || errors.Is(err, room.ErrParticipantNotFound) {
				continue
			}

			return pruned, fmt.Errorf("failed to remove stale participant: %w", err)
		}

		s.logger.InfoContext(ctx, "stale participant removed", "room_id", roomID, "participant_id", p.ParticipantID)
		pruned++
	}

	if pruned > 0 {
		s.publishParticipants(ctx, roomID)
	}

	return pruned, nil
}
