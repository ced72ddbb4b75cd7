package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/repository/room"
)

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (room.Room, room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	now := timeToField(params.CreatedAt)
	kind, contentID := params.ContentRef.Kind()

	args := []any{
		params.RoomID,
		now,
		params.ParticipantID,
		params.RecordID,
		params.DisplayName,
		// room hash fields
		"id", params.RoomID,
		"code", params.Code,
		"movie_id", params.ContentRef.MovieID,
		"episode_id", params.ContentRef.EpisodeID,
		"content_kind", kind,
		"content_id", contentID,
		"content_title", params.Content.Title,
		"content_embed_url", params.Content.EmbedURL,
		"content_thumbnail_url", params.Content.ThumbnailURL,
		"host_participant_id", params.ParticipantID,
		"max_participants", strconv.Itoa(params.MaxParticipants),
		"participant_count", "1",
		"is_active", "1",
		"playback_position", "0",
		"is_playing", "0",
		"playback_speed", floatToField(params.PlaybackSpeed),
		"created_at", now,
		"last_activity", now,
		"last_message_at", "0",
	}

	keys := []string{
		r.getRoomKey(params.RoomID),
		r.getCodeKey(params.Code),
		activeKey,
		r.getParticipantsKey(params.RoomID),
		r.getParticipantKey(params.RoomID, params.ParticipantID),
	}

	res, err := r.createRoomScript.Run(ctx, r.rc, keys, args...).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, room.Participant{}, fmt.Errorf("failed to create room: %w", err)
	}

	status, _, err := parseScriptReply(res)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, room.Participant{}, err
	}

	switch status {
	case statusOK:
	case statusCodeTaken:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrCodeTaken)
		return room.Room{}, room.Participant{}, room.ErrCodeTaken
	case statusRoomExists:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomExists)
		return room.Room{}, room.Participant{}, room.ErrRoomExists
	default:
		return room.Room{}, room.Participant{}, fmt.Errorf("unexpected create room status %q", status)
	}

	createdAt := fieldToTime(now)
	newRoom := room.Room{
		ID:                params.RoomID,
		Code:              params.Code,
		ContentRef:        params.ContentRef,
		Content:           params.Content,
		HostParticipantID: params.ParticipantID,
		MaxParticipants:   params.MaxParticipants,
		ParticipantCount:  1,
		IsActive:          true,
		PlaybackSpeed:     params.PlaybackSpeed,
		CreatedAt:         createdAt,
		LastActivity:      createdAt,
	}
	host := room.Participant{
		ID:            params.RecordID,
		RoomID:        params.RoomID,
		ParticipantID: params.ParticipantID,
		DisplayName:   params.DisplayName,
		IsHost:        true,
		JoinedAt:      createdAt,
		LastSeen:      createdAt,
	}

	r.logger.DebugContext(ctx, "returned", "room", newRoom)
	return newRoom, host, nil
}

// GetRoom returns the room whether active or not.
func (r repo) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "roomID", roomID)
	h, err := r.rc.HGetAll(ctx, r.getRoomKey(roomID)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if len(h) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	res := roomFromHash(h)
	r.logger.DebugContext(ctx, "returned", "room", res)
	return res, nil
}

// GetRoomByCode resolves a code among active rooms only.
func (r repo) GetRoomByCode(ctx context.Context, code string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "code", code)
	roomID, err := r.rc.Get(ctx, r.getCodeKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
			return room.Room{}, room.ErrRoomNotFound
		}

		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, fmt.Errorf("failed to get room id by code: %w", err)
	}

	return r.GetRoom(ctx, roomID)
}

// ListActiveRooms returns up to limit active rooms, most recently active first.
func (r repo) ListActiveRooms(ctx context.Context, limit int) ([]room.Room, error) {
	r.logger.DebugContext(ctx, "called", "limit", limit)
	roomIDs, err := r.rc.ZRevRange(ctx, activeKey, 0, int64(limit)-1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to list active room ids: %w", err)
	}

	rooms, err := r.getRooms(ctx, roomIDs)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	r.logger.DebugContext(ctx, "returned", "count", len(rooms))
	return rooms, nil
}

func (r repo) ListActiveRoomIDs(ctx context.Context) ([]string, error) {
	r.logger.DebugContext(ctx, "called")
	roomIDs, err := r.rc.ZRange(ctx, activeKey, 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to list active room ids: %w", err)
	}

	return roomIDs, nil
}

func (r repo) getRooms(ctx context.Context, roomIDs []string) ([]room.Room, error) {
	if len(roomIDs) == 0 {
		return []room.Room{}, nil
	}

	pipe := r.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getRoomKey(roomID)))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get rooms: %w", err)
	}

	rooms := make([]room.Room, 0, len(cmds))
	for _, cmd := range cmds {
		h := cmd.Val()
		// a room may be closed between the index read and the pipeline
		if len(h) == 0 || !fieldToBool(h["is_active"]) {
			continue
		}

		rooms = append(rooms, roomFromHash(h))
	}

	return rooms, nil
}

func (r repo) CloseRoom(ctx context.Context, params *room.CloseRoomParams) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	keys := []string{
		r.getRoomKey(params.RoomID),
		activeKey,
		r.getParticipantsKey(params.RoomID),
		r.getMessagesKey(params.RoomID),
		r.getMessageSeqKey(params.RoomID),
	}
	args := []any{
		params.RoomID,
		timeToField(params.ClosedAt),
		cutoffToField(params.IdleBefore),
		codeKeyPrefix,
		strconv.FormatInt(int64(r.retention/time.Second), 10),
		r.getParticipantKeyPrefix(params.RoomID),
	}

	res, err := r.closeRoomScript.Run(ctx, r.rc, keys, args...).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, fmt.Errorf("failed to close room: %w", err)
	}

	status, values, err := parseScriptReply(res)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	switch status {
	case statusOK:
	case statusRoomNotFound:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	case statusBusy:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomInUse)
		return room.Room{}, room.ErrRoomInUse
	default:
		return room.Room{}, fmt.Errorf("unexpected close room status %q", status)
	}

	closed := roomFromHash(pairsToMap(values))
	r.logger.DebugContext(ctx, "returned", "room", closed)
	return closed, nil
}

func (r repo) UpdatePlayback(ctx context.Context, params *room.UpdatePlaybackParams) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	var position, isPlaying, speed string
	if params.Position != nil {
		position = floatToField(*params.Position)
	}
	if params.IsPlaying != nil {
		isPlaying = boolToField(*params.IsPlaying)
	}
	if params.Speed != nil {
		speed = floatToField(*params.Speed)
	}

	keys := []string{r.getRoomKey(params.RoomID), activeKey}
	res, err := r.updatePlaybackScript.Run(ctx, r.rc, keys,
		params.RoomID,
		timeToField(params.UpdatedAt),
		position,
		isPlaying,
		speed,
	).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, fmt.Errorf("failed to update playback: %w", err)
	}

	status, values, err := parseScriptReply(res)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	if status == statusRoomNotFound {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	updated := roomFromHash(pairsToMap(values))
	r.logger.DebugContext(ctx, "returned", "room", updated)
	return updated, nil
}
