package room

import (
	"time"

	"github.com/sharetube/party/internal/repository/room"
)

const (
	StateActive = "active"
	StateIdle   = "idle"
	StateClosed = "closed"
)

type Content struct {
	Kind         string `json:"kind"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	EmbedURL     string `json:"embed_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type Playback struct {
	Position  float64 `json:"position"`
	IsPlaying bool    `json:"is_playing"`
	Speed     float64 `json:"speed"`
}

type Room struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	URL               string    `json:"url"`
	MovieID           string    `json:"movie_id,omitempty"`
	EpisodeID         string    `json:"episode_id,omitempty"`
	Content           Content   `json:"content"`
	HostParticipantID string    `json:"host_participant_id"`
	MaxParticipants   int       `json:"max_participants"`
	ParticipantCount  int       `json:"participant_count"`
	IsActive          bool      `json:"is_active"`
	State             string    `json:"state"`
	Playback          Playback  `json:"playback"`
	CreatedAt         time.Time `json:"created_at"`
	LastActivity      time.Time `json:"last_activity"`
}

type Participant struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	IsHost        bool      `json:"is_host"`
	JoinedAt      time.Time `json:"joined_at"`
	LastSeen      time.Time `json:"last_seen"`
}

type Message struct {
	ID            string    `json:"id"`
	Seq           int64     `json:"seq"`
	RoomID        string    `json:"room_id"`
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Body          string    `json:"body"`
	SentAt        time.Time `json:"sent_at"`
}

// ParticipantsUpdated is the PARTICIPANTS_UPDATED payload.
type ParticipantsUpdated struct {
	Room         Room          `json:"room"`
	Participants []Participant `json:"participants"`
}

// RoomState is the snapshot a subscriber receives before any other event.
type RoomState struct {
	Room         Room          `json:"room"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
}

type RoomWithParticipants struct {
	Room         Room          `json:"room"`
	Participants []Participant `json:"participants"`
}

func roomState(rm room.Room) string {
	switch {
	case !rm.IsActive:
		return StateClosed
	case rm.ParticipantCount == 0:
		return StateIdle
	default:
		return StateActive
	}
}

func (s service) roomURL(code string) string {
	return s.baseURL + "/room/" + code
}

func (s service) toRoom(rm room.Room) Room {
	return Room{
		ID:                rm.ID,
		Code:              rm.Code,
		URL:               s.roomURL(rm.Code),
		MovieID:           rm.ContentRef.MovieID,
		EpisodeID:         rm.ContentRef.EpisodeID,
		Content:           toContent(rm.Content),
		HostParticipantID: rm.HostParticipantID,
		MaxParticipants:   rm.MaxParticipants,
		ParticipantCount:  rm.ParticipantCount,
		IsActive:          rm.IsActive,
		State:             roomState(rm),
		Playback: Playback{
			Position:  rm.PlaybackPosition,
			IsPlaying: rm.IsPlaying,
			Speed:     rm.PlaybackSpeed,
		},
		CreatedAt:    rm.CreatedAt,
		LastActivity: rm.LastActivity,
	}
}

func (s service) toRooms(rooms []room.Room) []Room {
	res := make([]Room, 0, len(rooms))
	for _, rm := range rooms {
		res = append(res, s.toRoom(rm))
	}

	return res
}

func toContent(c room.Content) Content {
	return Content{
		Kind:         c.Kind,
		ID:           c.ID,
		Title:        c.Title,
		EmbedURL:     c.EmbedURL,
		ThumbnailURL: c.ThumbnailURL,
	}
}

func toParticipant(p room.Participant) Participant {
	return Participant{
		ID:            p.ID,
		RoomID:        p.RoomID,
		ParticipantID: p.ParticipantID,
		DisplayName:   p.DisplayName,
		IsHost:        p.IsHost,
		JoinedAt:      p.JoinedAt,
		LastSeen:      p.LastSeen,
	}
}

func toParticipants(participants []room.Participant) []Participant {
	res := make([]Participant, 0, len(participants))
	for _, p := range participants {
		res = append(res, toParticipant(p))
	}

	return res
}

func toMessage(m room.Message) Message {
	return Message{
		ID:            m.ID,
		Seq:           m.Seq,
		RoomID:        m.RoomID,
		ParticipantID: m.ParticipantID,
		DisplayName:   m.DisplayName,
		Body:          m.Body,
		SentAt:        m.SentAt,
	}
}

func toMessages(messages []room.Message) []Message {
	res := make([]Message, 0, len(messages))
	for _, m := range messages {
		res = append(res, toMessage(m))
	}

	return res
}
