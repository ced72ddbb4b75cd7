package room

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/repository/room"
	omitnilpointers "github.com/sharetube/party/pkg/omit-nil-pointers"
)

// UpdatePlaybackParams carries a partial update. Nil fields keep their stored
// value.
type UpdatePlaybackParams struct {
	RoomID    string
	Position  *float64
	IsPlaying *bool
	Speed     *float64
}

// UpdatePlayback merges the given fields into the room's playback state. Any
// caller may update and the last write wins.
func (s service) UpdatePlayback(ctx context.Context, params *UpdatePlaybackParams) (Room, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Position, PositionRule...),
		validation.Field(&params.Speed, SpeedRule...),
	); err != nil {
		return Room{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if !isRoomID(params.RoomID) {
		return Room{}, ErrRoomNotFound
	}

	s.logger.DebugContext(ctx, "playback update", "room_id", params.RoomID, "fields", omitnilpointers.OmitNilPointers(map[string]any{
		"position":   params.Position,
		"is_playing": params.IsPlaying,
		"speed":      params.Speed,
	}))

	updated, err := s.roomRepo.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		RoomID:    params.RoomID,
		Position:  params.Position,
		IsPlaying: params.IsPlaying,
		Speed:     params.Speed,
		UpdatedAt: s.now(),
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to update playback", "error", err)
		if mapped := mapRepoError(err); mapped != err {
			return Room{}, mapped
		}

		return Room{}, fmt.Errorf("failed to update playback: %w", err)
	}

	res := s.toRoom(updated)
	s.publish(ctx, gateway.EventPlaybackUpdated, params.RoomID, res)

	return res, nil
}
