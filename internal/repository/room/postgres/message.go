package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sharetube/party/internal/repository/room"
)

const messageColumns = `id::text, seq, room_id::text, participant_id, display_name, body, sent_at`

func scanMessage(row pgx.Row) (room.Message, error) {
	var m room.Message
	err := row.Scan(&m.ID, &m.Seq, &m.RoomID, &m.ParticipantID, &m.DisplayName, &m.Body, &m.SentAt)
	return m, err
}

func (r repo) AddMessage(ctx context.Context, params *room.AddMessageParams) (room.Message, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	var msg room.Message
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var (
			isActive      bool
			lastMessageAt *time.Time
		)
		err := tx.QueryRow(ctx, `
			SELECT is_active, last_message_at
			FROM rooms WHERE id = $1 FOR UPDATE`, params.RoomID,
		).Scan(&isActive, &lastMessageAt)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !isActive) {
			return room.ErrRoomNotFound
		}
		if err != nil {
			return err
		}

		displayName := params.DisplayName
		var storedName string
		err = tx.QueryRow(ctx, `
			SELECT display_name FROM participants
			WHERE room_id = $1 AND participant_id = $2`,
			params.RoomID, params.ParticipantID,
		).Scan(&storedName)
		if errors.Is(err, pgx.ErrNoRows) {
			return room.ErrParticipantNotFound
		}
		if err != nil {
			return err
		}
		if displayName == "" {
			displayName = storedName
		}

		sentAt := params.SentAt.UTC()
		if lastMessageAt != nil && sentAt.Before(*lastMessageAt) {
			sentAt = lastMessageAt.UTC()
		}

		msg, err = scanMessage(tx.QueryRow(ctx, `
			INSERT INTO messages (id, room_id, participant_id, display_name, body, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+messageColumns,
			params.MessageID, params.RoomID, params.ParticipantID, displayName, params.Body, sentAt,
		))
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE rooms
			SET last_message_at = $2,
				last_activity = GREATEST(last_activity, $3)
			WHERE id = $1`, params.RoomID, sentAt, params.SentAt.UTC(),
		)
		return err
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrParticipantNotFound) || errors.Is(err, room.ErrConflict) {
			return room.Message{}, err
		}

		return room.Message{}, fmt.Errorf("failed to add message: %w", err)
	}

	r.logger.DebugContext(ctx, "returned", "message", msg)
	return msg, nil
}

// ListMessages returns the latest params.Limit messages, oldest first.
func (r repo) ListMessages(ctx context.Context, params *room.ListMessagesParams) ([]room.Message, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = $1
		ORDER BY sent_at DESC, seq DESC
		LIMIT $2`, params.RoomID, params.Limit)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]room.Message, 0, params.Limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	slices.Reverse(messages)
	r.logger.DebugContext(ctx, "returned", "count", len(messages))
	return messages, nil
}
