package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sharetube/party/internal/repository/room"
)

const roomColumns = `
	r.id::text, r.code, COALESCE(r.movie_id, ''), COALESCE(r.episode_id, ''),
	COALESCE(c.kind, ''), COALESCE(c.content_id, ''), COALESCE(c.title, ''),
	COALESCE(c.embed_url, ''), COALESCE(c.thumbnail_url, ''),
	r.host_participant_id, r.max_participants, r.participant_count, r.is_active,
	r.playback_position, r.is_playing, r.playback_speed, r.created_at, r.last_activity`

func scanRoom(row pgx.Row) (room.Room, error) {
	var rm room.Room
	err := row.Scan(
		&rm.ID,
		&rm.Code,
		&rm.ContentRef.MovieID,
		&rm.ContentRef.EpisodeID,
		&rm.Content.Kind,
		&rm.Content.ID,
		&rm.Content.Title,
		&rm.Content.EmbedURL,
		&rm.Content.ThumbnailURL,
		&rm.HostParticipantID,
		&rm.MaxParticipants,
		&rm.ParticipantCount,
		&rm.IsActive,
		&rm.PlaybackPosition,
		&rm.IsPlaying,
		&rm.PlaybackSpeed,
		&rm.CreatedAt,
		&rm.LastActivity,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return room.Room{}, room.ErrRoomNotFound
		}

		return room.Room{}, err
	}

	return rm, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (room.Room, room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	kind, contentID := params.ContentRef.Kind()
	createdAt := params.CreatedAt.UTC()

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO rooms (id, code, movie_id, episode_id, host_participant_id,
				max_participants, participant_count, playback_speed, created_at, last_activity)
			VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $8)`,
			params.RoomID,
			params.Code,
			nullable(params.ContentRef.MovieID),
			nullable(params.ContentRef.EpisodeID),
			params.ParticipantID,
			params.MaxParticipants,
			params.PlaybackSpeed,
			createdAt,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO room_contents (room_id, kind, content_id, title, embed_url, thumbnail_url)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			params.RoomID,
			kind,
			contentID,
			params.Content.Title,
			params.Content.EmbedURL,
			params.Content.ThumbnailURL,
		); err != nil {
			return fmt.Errorf("failed to insert room content: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO participants (id, room_id, participant_id, display_name, is_host, joined_at, last_seen)
			VALUES ($1, $2, $3, $4, TRUE, $5, $5)`,
			params.RecordID,
			params.RoomID,
			params.ParticipantID,
			params.DisplayName,
			createdAt,
		); err != nil {
			return fmt.Errorf("failed to insert host participant: %w", err)
		}

		return nil
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrCodeTaken) || errors.Is(err, room.ErrRoomExists) {
			return room.Room{}, room.Participant{}, err
		}

		return room.Room{}, room.Participant{}, fmt.Errorf("failed to create room: %w", err)
	}

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

func (r repo) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "roomID", roomID)
	res, err := scanRoom(r.db.QueryRow(ctx, `
		SELECT `+roomColumns+`
		FROM rooms r
		LEFT JOIN room_contents c ON c.room_id = r.id
		WHERE r.id = $1`, roomID))
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrRoomNotFound) {
			return room.Room{}, err
		}

		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	return res, nil
}

func (r repo) GetRoomByCode(ctx context.Context, code string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "code", code)
	res, err := scanRoom(r.db.QueryRow(ctx, `
		SELECT `+roomColumns+`
		FROM rooms r
		LEFT JOIN room_contents c ON c.room_id = r.id
		WHERE r.code = $1 AND r.is_active`, code))
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrRoomNotFound) {
			return room.Room{}, err
		}

		return room.Room{}, fmt.Errorf("failed to get room by code: %w", err)
	}

	return res, nil
}

func (r repo) ListActiveRooms(ctx context.Context, limit int) ([]room.Room, error) {
	r.logger.DebugContext(ctx, "called", "limit", limit)
	rows, err := r.db.Query(ctx, `
		SELECT `+roomColumns+`
		FROM rooms r
		LEFT JOIN room_contents c ON c.room_id = r.id
		WHERE r.is_active
		ORDER BY r.last_activity DESC, r.id DESC
		LIMIT $1`, limit)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]room.Room, 0, limit)
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, rm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}

	r.logger.DebugContext(ctx, "returned", "count", len(rooms))
	return rooms, nil
}

func (r repo) ListActiveRoomIDs(ctx context.Context) ([]string, error) {
	r.logger.DebugContext(ctx, "called")
	rows, err := r.db.Query(ctx, `SELECT id::text FROM rooms WHERE is_active ORDER BY last_activity`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active room ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect active room ids: %w", err)
	}

	return ids, nil
}

// lockRoom takes the row lock every atomic unit on a room serializes on.
func lockRoom(ctx context.Context, q querier, roomID string) (active bool, err error) {
	err = q.QueryRow(ctx, `SELECT is_active FROM rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, room.ErrRoomNotFound
	}

	return active, err
}

func touchRoom(ctx context.Context, q querier, roomID string, at time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE rooms SET last_activity = GREATEST(last_activity, $2)
		WHERE id = $1`, roomID, at.UTC())
	return err
}

func (r repo) CloseRoom(ctx context.Context, params *room.CloseRoomParams) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	var closed room.Room
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var (
			isActive     bool
			count        int
			lastActivity time.Time
		)
		err := tx.QueryRow(ctx, `
			SELECT is_active, participant_count, last_activity
			FROM rooms WHERE id = $1 FOR UPDATE`, params.RoomID,
		).Scan(&isActive, &count, &lastActivity)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !isActive) {
			return room.ErrRoomNotFound
		}
		if err != nil {
			return err
		}

		if !params.IdleBefore.IsZero() && (count > 0 || !lastActivity.Before(params.IdleBefore)) {
			return room.ErrRoomInUse
		}

		closed, err = scanRoom(tx.QueryRow(ctx, `
			WITH r AS (
				UPDATE rooms
				SET is_active = FALSE, last_activity = GREATEST(last_activity, $2)
				WHERE id = $1
				RETURNING *
			)
			SELECT `+roomColumns+`
			FROM r
			LEFT JOIN room_contents c ON c.room_id = r.id`,
			params.RoomID, params.ClosedAt.UTC(),
		))
		return err
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrRoomInUse) {
			return room.Room{}, err
		}

		return room.Room{}, fmt.Errorf("failed to close room: %w", err)
	}

	r.logger.DebugContext(ctx, "returned", "room", closed)
	return closed, nil
}

func (r repo) UpdatePlayback(ctx context.Context, params *room.UpdatePlaybackParams) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	updated, err := scanRoom(r.db.QueryRow(ctx, `
		WITH r AS (
			UPDATE rooms
			SET playback_position = COALESCE($2::double precision, playback_position),
				is_playing = COALESCE($3::boolean, is_playing),
				playback_speed = COALESCE($4::double precision, playback_speed),
				last_activity = GREATEST(last_activity, $5)
			WHERE id = $1 AND is_active
			RETURNING *
		)
		SELECT `+roomColumns+`
		FROM r
		LEFT JOIN room_contents c ON c.room_id = r.id`,
		params.RoomID,
		params.Position,
		params.IsPlaying,
		params.Speed,
		params.UpdatedAt.UTC(),
	))
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrRoomNotFound) {
			return room.Room{}, err
		}

		return room.Room{}, mapPgError(fmt.Errorf("failed to update playback: %w", err))
	}

	r.logger.DebugContext(ctx, "returned", "room", updated)
	return updated, nil
}
