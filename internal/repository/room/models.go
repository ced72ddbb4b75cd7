package room

import "time"

const (
	ContentKindMovie   = "movie"
	ContentKindEpisode = "episode"
)

// ContentRef points at exactly one playable item.
type ContentRef struct {
	MovieID   string
	EpisodeID string
}

// Kind returns the kind of the referenced item and its id. Both are empty when
// the reference does not point at exactly one item.
func (c ContentRef) Kind() (string, string) {
	switch {
	case c.MovieID != "" && c.EpisodeID == "":
		return ContentKindMovie, c.MovieID
	case c.EpisodeID != "" && c.MovieID == "":
		return ContentKindEpisode, c.EpisodeID
	default:
		return "", ""
	}
}

func (c ContentRef) Valid() bool {
	kind, _ := c.Kind()
	return kind != ""
}

// Content is the resolved metadata of a ContentRef as returned by the catalog.
type Content struct {
	Kind         string
	ID           string
	Title        string
	EmbedURL     string
	ThumbnailURL string
}

type Room struct {
	ID                string
	Code              string
	ContentRef        ContentRef
	Content           Content
	HostParticipantID string
	MaxParticipants   int
	ParticipantCount  int
	IsActive          bool
	PlaybackPosition  float64
	IsPlaying         bool
	PlaybackSpeed     float64
	CreatedAt         time.Time
	LastActivity      time.Time
}

type Participant struct {
	ID            string
	RoomID        string
	ParticipantID string
	DisplayName   string
	IsHost        bool
	JoinedAt      time.Time
	LastSeen      time.Time
}

type Message struct {
	ID            string
	Seq           int64
	RoomID        string
	ParticipantID string
	DisplayName   string
	Body          string
	SentAt        time.Time
}
