package gateway

const (
	EventRoomState           = "ROOM_STATE"
	EventPlaybackUpdated     = "PLAYBACK_UPDATED"
	EventParticipantsUpdated = "PARTICIPANTS_UPDATED"
	EventMessageAppended     = "MESSAGE_APPENDED"
	EventRoomClosed          = "ROOM_CLOSED"
)

// Event is a change notification for a single room. Payload always carries the
// full resource, never a diff.
type Event struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Payload any    `json:"payload"`
}
