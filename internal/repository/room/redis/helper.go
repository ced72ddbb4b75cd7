package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sharetube/party/internal/repository/room"
)

const (
	statusOK           = "OK"
	statusRoomNotFound = "ROOM_NOT_FOUND"
	statusRoomExists   = "ROOM_EXISTS"
	statusCodeTaken    = "CODE_TAKEN"
	statusRoomFull     = "ROOM_FULL"
	statusExisting     = "EXISTING"
	statusCreated      = "CREATED"
	statusNotFound     = "NOT_FOUND"
	statusFresh        = "FRESH"
	statusBusy         = "BUSY"
	statusNotAMember   = "NOT_A_MEMBER"
)

// Every key of a room carries the room id as a hash tag so the keys a script
// touches for one room share a cluster slot. The code index and the active
// rooms index are global, so the scripts still require a single Redis node
// (or a cluster-compatible proxy that pins them to one shard).
const (
	codeKeyPrefix = "room-code:"
	activeKey     = "rooms:active"
)

func (r repo) getRoomKey(roomID string) string {
	return "room:{" + roomID + "}"
}

func (r repo) getCodeKey(code string) string {
	return codeKeyPrefix + code
}

func (r repo) getParticipantsKey(roomID string) string {
	return r.getRoomKey(roomID) + ":participants"
}

func (r repo) getParticipantKeyPrefix(roomID string) string {
	return r.getRoomKey(roomID) + ":participant:"
}

func (r repo) getParticipantKey(roomID, participantID string) string {
	return r.getParticipantKeyPrefix(roomID) + participantID
}

func (r repo) getMessagesKey(roomID string) string {
	return r.getRoomKey(roomID) + ":messages"
}

func (r repo) getMessageSeqKey(roomID string) string {
	return r.getRoomKey(roomID) + ":message-seq"
}

// parseScriptReply splits a script reply into its status and the trailing
// values.
func parseScriptReply(res any) (string, []string, error) {
	items, ok := res.([]any)
	if !ok || len(items) == 0 {
		return "", nil, fmt.Errorf("unexpected script reply %T", res)
	}

	status, ok := items[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("unexpected script status %T", items[0])
	}

	values := make([]string, 0, len(items)-1)
	for _, item := range items[1:] {
		s, ok := item.(string)
		if !ok {
			return "", nil, fmt.Errorf("unexpected script value %T", item)
		}
		values = append(values, s)
	}

	return status, values, nil
}

func pairsToMap(pairs []string) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}

	return m
}

func fieldToBool(field string) bool {
	return field == "1"
}

func fieldToInt(field string) int {
	i, _ := strconv.Atoi(field)
	return i
}

func fieldToInt64(field string) int64 {
	i, _ := strconv.ParseInt(field, 10, 64)
	return i
}

func fieldToFloat64(field string) float64 {
	f, _ := strconv.ParseFloat(field, 64)
	return f
}

func fieldToTime(field string) time.Time {
	return time.UnixMilli(fieldToInt64(field)).UTC()
}

func boolToField(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

func floatToField(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func timeToField(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// cutoffToField converts an optional cutoff to script form, 0 meaning none.
func cutoffToField(t time.Time) string {
	if t.IsZero() {
		return "0"
	}

	return timeToField(t)
}

func roomFromHash(h map[string]string) room.Room {
	return room.Room{
		ID:   h["id"],
		Code: h["code"],
		ContentRef: room.ContentRef{
			MovieID:   h["movie_id"],
			EpisodeID: h["episode_id"],
		},
		Content: room.Content{
			Kind:         h["content_kind"],
			ID:           h["content_id"],
			Title:        h["content_title"],
			EmbedURL:     h["content_embed_url"],
			ThumbnailURL: h["content_thumbnail_url"],
		},
		HostParticipantID: h["host_participant_id"],
		MaxParticipants:   fieldToInt(h["max_participants"]),
		ParticipantCount:  fieldToInt(h["participant_count"]),
		IsActive:          fieldToBool(h["is_active"]),
		PlaybackPosition:  fieldToFloat64(h["playback_position"]),
		IsPlaying:         fieldToBool(h["is_playing"]),
		PlaybackSpeed:     fieldToFloat64(h["playback_speed"]),
		CreatedAt:         fieldToTime(h["created_at"]),
		LastActivity:      fieldToTime(h["last_activity"]),
	}
}

func participantFromHash(h map[string]string) room.Participant {
	return room.Participant{
		ID:            h["id"],
		RoomID:        h["room_id"],
		ParticipantID: h["participant_id"],
		DisplayName:   h["display_name"],
		IsHost:        fieldToBool(h["is_host"]),
		JoinedAt:      fieldToTime(h["joined_at"]),
		LastSeen:      fieldToTime(h["last_seen"]),
	}
}
