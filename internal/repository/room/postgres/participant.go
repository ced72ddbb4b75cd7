package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sharetube/party/internal/repository/room"
)

const participantColumns = `id::text, room_id::text, participant_id, display_name, is_host, joined_at, last_seen`

func scanParticipant(row pgx.Row) (room.Participant, error) {
	var p room.Participant
	err := row.Scan(&p.ID, &p.RoomID, &p.ParticipantID, &p.DisplayName, &p.IsHost, &p.JoinedAt, &p.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return room.Participant{}, room.ErrParticipantNotFound
		}

		return room.Participant{}, err
	}

	return p, nil
}

func (r repo) JoinRoom(ctx context.Context, params *room.JoinRoomParams) (room.Participant, bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	var (
		participant room.Participant
		created     bool
	)
	joinedAt := params.JoinedAt.UTC()

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var (
			isActive bool
			count    int
			limit    int
		)
		err := tx.QueryRow(ctx, `
			SELECT is_active, participant_count, max_participants
			FROM rooms WHERE id = $1 FOR UPDATE`, params.RoomID,
		).Scan(&isActive, &count, &limit)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !isActive) {
			return room.ErrRoomNotFound
		}
		if err != nil {
			return err
		}

		participant, err = scanParticipant(tx.QueryRow(ctx, `
			UPDATE participants
			SET last_seen = GREATEST(last_seen, $3),
				display_name = CASE WHEN $4 = '' THEN display_name ELSE $4 END
			WHERE room_id = $1 AND participant_id = $2
			RETURNING `+participantColumns,
			params.RoomID, params.ParticipantID, joinedAt, params.DisplayName,
		))
		switch {
		case err == nil:
			return touchRoom(ctx, tx, params.RoomID, joinedAt)
		case !errors.Is(err, room.ErrParticipantNotFound):
			return err
		}

		if count >= limit {
			return room.ErrRoomFull
		}

		participant, err = scanParticipant(tx.QueryRow(ctx, `
			INSERT INTO participants (id, room_id, participant_id, display_name, is_host, joined_at, last_seen)
			VALUES ($1, $2, $3, $4, FALSE, $5, $5)
			RETURNING `+participantColumns,
			params.RecordID, params.RoomID, params.ParticipantID, params.DisplayName, joinedAt,
		))
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE rooms
			SET participant_count = participant_count + 1,
				last_activity = GREATEST(last_activity, $2)
			WHERE id = $1`, params.RoomID, joinedAt,
		); err != nil {
			return fmt.Errorf("failed to increment participant count: %w", err)
		}

		created = true
		return nil
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrRoomFull) || errors.Is(err, room.ErrConflict) {
			return room.Participant{}, false, err
		}

		return room.Participant{}, false, fmt.Errorf("failed to join room: %w", err)
	}

	r.logger.DebugContext(ctx, "returned", "participant", participant, "created", created)
	return participant, created, nil
}

func (r repo) LeaveRoom(ctx context.Context, params *room.LeaveRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	var seenBefore *time.Time
	if !params.SeenBefore.IsZero() {
		t := params.SeenBefore.UTC()
		seenBefore = &t
	}

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := lockRoom(ctx, tx, params.RoomID)
		roomExists := err == nil
		if err != nil && !errors.Is(err, room.ErrRoomNotFound) {
			return err
		}

		tag, err := tx.Exec(ctx, `
			DELETE FROM participants
			WHERE room_id = $1 AND participant_id = $2
				AND ($3::timestamptz IS NULL OR last_seen < $3)`,
			params.RoomID, params.ParticipantID, seenBefore,
		)
		if err != nil {
			return fmt.Errorf("failed to delete participant: %w", err)
		}

		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `
				SELECT EXISTS(SELECT 1 FROM participants WHERE room_id = $1 AND participant_id = $2)`,
				params.RoomID, params.ParticipantID,
			).Scan(&exists); err != nil {
				return err
			}

			if exists {
				return room.ErrParticipantActive
			}

			return room.ErrParticipantNotFound
		}

		if !roomExists {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE rooms
			SET participant_count = GREATEST(participant_count - 1, 0),
				last_activity = GREATEST(last_activity, $2)
			WHERE id = $1`, params.RoomID, params.LeftAt.UTC(),
		)
		return err
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrParticipantNotFound) || errors.Is(err, room.ErrParticipantActive) || errors.Is(err, room.ErrConflict) {
			return err
		}

		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

func (r repo) TouchParticipant(ctx context.Context, params *room.TouchParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	tag, err := r.db.Exec(ctx, `
		UPDATE participants SET last_seen = GREATEST(last_seen, $3)
		WHERE room_id = $1 AND participant_id = $2`,
		params.RoomID, params.ParticipantID, params.SeenAt.UTC(),
	)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to touch participant: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.ErrParticipantNotFound
	}

	return nil
}

func (r repo) GetParticipant(ctx context.Context, roomID, participantID string) (room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "roomID", roomID, "participantID", participantID)
	p, err := scanParticipant(r.db.QueryRow(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE room_id = $1 AND participant_id = $2`, roomID, participantID))
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrParticipantNotFound) {
			return room.Participant{}, err
		}

		return room.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}

	return p, nil
}

func (r repo) ListParticipants(ctx context.Context, roomID string) ([]room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "roomID", roomID)
	rows, err := r.db.Query(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE room_id = $1
		ORDER BY joined_at ASC, id ASC`, roomID)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]room.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	r.logger.DebugContext(ctx, "returned", "count", len(participants))
	return participants, nil
}
