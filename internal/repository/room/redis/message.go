package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sharetube/party/internal/repository/room"
)

// storedMessage is the list entry layout written by the add message script.
// Every field is a string since cjson encodes them from script arguments.
type storedMessage struct {
	ID            string `json:"id"`
	Seq           string `json:"seq"`
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Body          string `json:"body"`
	SentAt        string `json:"sent_at"`
}

func (m storedMessage) toMessage() room.Message {
	return room.Message{
		ID:            m.ID,
		Seq:           fieldToInt64(m.Seq),
		RoomID:        m.RoomID,
		ParticipantID: m.ParticipantID,
		DisplayName:   m.DisplayName,
		Body:          m.Body,
		SentAt:        fieldToTime(m.SentAt),
	}
}

func decodeMessage(raw string) (room.Message, error) {
	var m storedMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return room.Message{}, fmt.Errorf("failed to decode message: %w", err)
	}

	return m.toMessage(), nil
}

func (r repo) AddMessage(ctx context.Context, params *room.AddMessageParams) (room.Message, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	keys := []string{
		r.getRoomKey(params.RoomID),
		r.getParticipantKey(params.RoomID, params.ParticipantID),
		r.getMessagesKey(params.RoomID),
		r.getMessageSeqKey(params.RoomID),
		activeKey,
	}

	res, err := r.addMessageScript.Run(ctx, r.rc, keys,
		params.RoomID,
		timeToField(params.SentAt),
		params.MessageID,
		params.ParticipantID,
		params.DisplayName,
		params.Body,
	).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Message{}, fmt.Errorf("failed to add message: %w", err)
	}

	status, values, err := parseScriptReply(res)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Message{}, err
	}

	switch status {
	case statusOK:
	case statusRoomNotFound:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Message{}, room.ErrRoomNotFound
	case statusNotAMember:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.Message{}, room.ErrParticipantNotFound
	default:
		return room.Message{}, fmt.Errorf("unexpected add message status %q", status)
	}

	if len(values) != 1 {
		return room.Message{}, fmt.Errorf("unexpected add message reply length %d", len(values))
	}

	msg, err := decodeMessage(values[0])
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Message{}, err
	}

	r.logger.DebugContext(ctx, "returned", "message", msg)
	return msg, nil
}

// ListMessages returns the latest params.Limit messages, oldest first.
func (r repo) ListMessages(ctx context.Context, params *room.ListMessagesParams) ([]room.Message, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	raw, err := r.rc.LRange(ctx, r.getMessagesKey(params.RoomID), -int64(params.Limit), -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]room.Message, 0, len(raw))
	for _, item := range raw {
		msg, err := decodeMessage(item)
		if err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return nil, err
		}

		messages = append(messages, msg)
	}

	r.logger.DebugContext(ctx, "returned", "count", len(messages))
	return messages, nil
}
