package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/repository/room"
)

// JoinRoom adds a participant or refreshes an existing one. The returned bool
// reports whether a new participant row was created.
func (r repo) JoinRoom(ctx context.Context, params *room.JoinRoomParams) (room.Participant, bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	keys := []string{
		r.getRoomKey(params.RoomID),
		r.getParticipantsKey(params.RoomID),
		r.getParticipantKey(params.RoomID, params.ParticipantID),
		activeKey,
	}

	res, err := r.joinRoomScript.Run(ctx, r.rc, keys,
		params.RoomID,
		params.ParticipantID,
		params.RecordID,
		params.DisplayName,
		timeToField(params.JoinedAt),
	).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Participant{}, false, fmt.Errorf("failed to join room: %w", err)
	}

	status, values, err := parseScriptReply(res)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Participant{}, false, err
	}

	switch status {
	case statusCreated, statusExisting:
	case statusRoomNotFound:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Participant{}, false, room.ErrRoomNotFound
	case statusRoomFull:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomFull)
		return room.Participant{}, false, room.ErrRoomFull
	default:
		return room.Participant{}, false, fmt.Errorf("unexpected join room status %q", status)
	}

	participant := participantFromHash(pairsToMap(values))
	r.logger.DebugContext(ctx, "returned", "participant", participant, "status", status)
	return participant, status == statusCreated, nil
}

func (r repo) LeaveRoom(ctx context.Context, params *room.LeaveRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	keys := []string{
		r.getRoomKey(params.RoomID),
		r.getParticipantsKey(params.RoomID),
		r.getParticipantKey(params.RoomID, params.ParticipantID),
		activeKey,
	}

	res, err := r.leaveRoomScript.Run(ctx, r.rc, keys,
		params.RoomID,
		params.ParticipantID,
		timeToField(params.LeftAt),
		cutoffToField(params.SeenBefore),
	).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to leave room: %w", err)
	}

	status, _, err := parseScriptReply(res)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	switch status {
	case statusOK:
		return nil
	case statusNotFound:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.ErrParticipantNotFound
	case statusFresh:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantActive)
		return room.ErrParticipantActive
	default:
		return fmt.Errorf("unexpected leave room status %q", status)
	}
}

func (r repo) TouchParticipant(ctx context.Context, params *room.TouchParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	res, err := r.touchParticipantScript.Run(ctx, r.rc,
		[]string{r.getParticipantKey(params.RoomID, params.ParticipantID)},
		timeToField(params.SeenAt),
	).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to touch participant: %w", err)
	}

	status, _, err := parseScriptReply(res)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if status == statusNotFound {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.ErrParticipantNotFound
	}

	return nil
}

func (r repo) GetParticipant(ctx context.Context, roomID, participantID string) (room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "roomID", roomID, "participantID", participantID)
	h, err := r.rc.HGetAll(ctx, r.getParticipantKey(roomID, participantID)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}

	if len(h) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.Participant{}, room.ErrParticipantNotFound
	}

	return participantFromHash(h), nil
}

// ListParticipants returns the room's participants ordered by join time.
func (r repo) ListParticipants(ctx context.Context, roomID string) ([]room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "roomID", roomID)
	participantIDs, err := r.rc.ZRange(ctx, r.getParticipantsKey(roomID), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to list participant ids: %w", err)
	}

	participants := make([]room.Participant, 0, len(participantIDs))
	if len(participantIDs) == 0 {
		return participants, nil
	}

	pipe := r.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(participantIDs))
	for _, participantID := range participantIDs {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getParticipantKey(roomID, participantID)))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}

	for _, cmd := range cmds {
		if h := cmd.Val(); len(h) > 0 {
			participants = append(participants, participantFromHash(h))
		}
	}

	r.logger.DebugContext(ctx, "returned", "count", len(participants))
	return participants, nil
}
