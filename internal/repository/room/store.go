package room

import "context"

// Store is the contract both the Redis and the Postgres backends implement.
// Every mutating method is a single atomic unit on the room it touches.
type Store interface {
	CreateRoom(context.Context, *CreateRoomParams) (Room, Participant, error)
	GetRoom(ctx context.Context, roomID string) (Room, error)
	GetRoomByCode(ctx context.Context, code string) (Room, error)
	ListActiveRooms(ctx context.Context, limit int) ([]Room, error)
	ListActiveRoomIDs(ctx context.Context) ([]string, error)
	CloseRoom(context.Context, *CloseRoomParams) (Room, error)
	UpdatePlayback(context.Context, *UpdatePlaybackParams) (Room, error)

	JoinRoom(context.Context, *JoinRoomParams) (Participant, bool, error)
	LeaveRoom(context.Context, *LeaveRoomParams) error
	TouchParticipant(context.Context, *TouchParticipantParams) error
	GetParticipant(ctx context.Context, roomID, participantID string) (Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]Participant, error)

	AddMessage(context.Context, *AddMessageParams) (Message, error)
	ListMessages(context.Context, *ListMessagesParams) ([]Message, error)
}
