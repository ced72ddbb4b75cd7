package room

import "time"

type CreateRoomParams struct {
	RoomID          string
	Code            string
	ContentRef      ContentRef
	Content         Content
	MaxParticipants int
	PlaybackSpeed   float64
	// host participant
	RecordID      string
	ParticipantID string
	DisplayName   string
	CreatedAt     time.Time
}

type JoinRoomParams struct {
	RoomID        string
	RecordID      string
	ParticipantID string
	DisplayName   string
	JoinedAt      time.Time
}

type LeaveRoomParams struct {
	RoomID        string
	ParticipantID string
	LeftAt        time.Time
	// zero means unconditional, otherwise the row is removed only when
	// last_seen is older than SeenBefore
	SeenBefore time.Time
}

type TouchParticipantParams struct {
	RoomID        string
	ParticipantID string
	SeenAt        time.Time
}

type CloseRoomParams struct {
	RoomID   string
	ClosedAt time.Time
	// zero means unconditional, otherwise the room is closed only when it has
	// no participants and last_activity is older than IdleBefore
	IdleBefore time.Time
}

// UpdatePlaybackParams carries a partial playback update. Nil fields are left
// unchanged.
type UpdatePlaybackParams struct {
	RoomID    string
	Position  *float64
	IsPlaying *bool
	Speed     *float64
	UpdatedAt time.Time
}

type AddMessageParams struct {
	RoomID        string
	MessageID     string
	ParticipantID string
	DisplayName   string
	Body          string
	SentAt        time.Time
}

type ListMessagesParams struct {
	RoomID string
	Limit  int
}
