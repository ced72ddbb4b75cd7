package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/repository/room"
)

type SweepResult struct {
	Pruned int
	Closed int
}

// Sweep removes stale participants from every active room and closes rooms
// that have been empty for longer than the configured idle period.
func (s service) Sweep(ctx context.Context) (SweepResult, error) {
	ids, err := s.roomRepo.ListActiveRoomIDs(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list active rooms: %w", err)
	}

	var res SweepResult
	now := s.now()
	for _, roomID := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if s.participantStaleAfter > 0 {
			pruned, err := s.PruneStale(ctx, roomID, now.Add(-s.participantStaleAfter))
			res.Pruned += pruned
			if err != nil {
				s.logger.InfoContext(ctx, "failed to prune room", "error", err, "room_id", roomID)
				continue
			}
		}

		if s.roomIdleAfter <= 0 {
			continue
		}

		closed, err := s.roomRepo.CloseRoom(ctx, &room.CloseRoomParams{
			RoomID:     roomID,
			ClosedAt:   s.now(),
			IdleBefore: now.Add(-s.roomIdleAfter),
		})
		if err != nil {
			if errors.Is(err, room.ErrRoomInUse) || errors.Is(err, room.ErrRoomNotFound) {
				continue
			}

			s.logger.InfoContext(ctx, "failed to close idle room", "error", err, "room_id", roomID)
			continue
		}

		s.logger.InfoContext(ctx, "idle room closed", "room_id", roomID)
		s.publish(ctx, gateway.EventRoomClosed, roomID, s.toRoom(closed))
		res.Closed++
	}

	return res, nil
}
