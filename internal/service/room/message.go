package room

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/repository/room"
)

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"

	maxMessageLength         = 2000
	defaultListMessagesLimit = 50
	maxListMessagesLimit     = 200
)

type PostMessageParams struct {
	RoomID        string
	ParticipantID string
	DisplayName   string
	Body          string
}

func (s service) PostMessage(ctx context.Context, params *PostMessageParams) (Message, error) {
	body := strings.TrimSpace(params.Body)
	if body == "" || utf8.RuneCountInString(body) > maxMessageLength {
		return Message{}, ErrInvalidMessage
	}

	params.DisplayName = strings.TrimSpace(params.DisplayName)
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.ParticipantID, ParticipantIDRule...),
		validation.Field(&params.DisplayName, validation.Length(0, 50)),
	); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if !isRoomID(params.RoomID) {
		return Message{}, ErrRoomNotFound
	}

	msg, err := s.roomRepo.AddMessage(ctx, &room.AddMessageParams{
		RoomID:        params.RoomID,
		MessageID:     uuid.NewString(),
		ParticipantID: params.ParticipantID,
		DisplayName:   params.DisplayName,
		Body:          body,
		SentAt:        s.now(),
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to add message", "error", err)
		if mapped := mapRepoError(err); mapped != err {
			return Message{}, mapped
		}

		return Message{}, fmt.Errorf("failed to add message: %w", err)
	}

	res := toMessage(msg)
	s.publish(ctx, gateway.EventMessageAppended, params.RoomID, res)

	return res, nil
}

type ListMessagesParams struct {
	RoomID string
	Limit  int
	Order  string
}

// ListMessages returns the latest messages of the room, newest first unless
// Order is OrderAsc.
func (s service) ListMessages(ctx context.Context, params *ListMessagesParams) ([]Message, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Order, OrderRule...),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if _, err := s.getActiveRoom(ctx, params.RoomID); err != nil {
		return nil, err
	}

	limit := params.Limit
	switch {
	case limit <= 0:
		limit = defaultListMessagesLimit
	case limit > maxListMessagesLimit:
		limit = maxListMessagesLimit
	}

	messages, err := s.roomRepo.ListMessages(ctx, &room.ListMessagesParams{
		RoomID: params.RoomID,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	if params.Order != OrderAsc {
		slices.Reverse(messages)
	}

	return toMessages(messages), nil
}
