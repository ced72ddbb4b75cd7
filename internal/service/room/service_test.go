package room

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/repository/content"
	roomRedis "github.com/sharetube/party/internal/repository/room/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []gateway.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event gateway.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]string, 0, len(p.events))
	for _, e := range p.events {
		res = append(res, e.Type)
	}

	return res
}

type fixedGenerator struct {
	code string
}

func (g fixedGenerator) Generate(int) (string, error) {
	return g.code, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*service, *recordingPublisher, *clock) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	publisher := &recordingPublisher{}
	svc := New(roomRedis.NewRepo(rc, time.Hour, slog.Default()), content.NewPassthrough(), publisher, &Config{
		Secret:                 "secret",
		BaseURL:                "https://party.example",
		DefaultMaxParticipants: 10,
		ParticipantStaleAfter:  2 * time.Minute,
		RoomIdleAfter:          30 * time.Minute,
	}, slog.Default())

	c := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc.now = c.Now

	return svc, publisher, c
}

func createRoom(t *testing.T, svc *service, maxParticipants int) CreateRoomResponse {
	t.Helper()
	resp, err := svc.CreateRoom(context.Background(), &CreateRoomParams{
		MovieID:         "movie-1",
		ParticipantID:   "p1",
		DisplayName:     "Alice",
		MaxParticipants: maxParticipants,
	})
	require.NoError(t, err)

	return resp
}

func TestCreateRoom(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp := createRoom(t, svc, 0)
	assert.NotEmpty(t, resp.JWT)
	assert.Len(t, resp.Room.Code, codeLength)
	assert.Regexp(t, `^[A-Z0-9]{8}$`, resp.Room.Code)
	assert.Equal(t, "https://party.example/room/"+resp.Room.Code, resp.Room.URL)
	assert.Equal(t, 10, resp.Room.MaxParticipants)
	assert.Equal(t, 1, resp.Room.ParticipantCount)
	assert.Equal(t, "p1", resp.Room.HostParticipantID)
	assert.Equal(t, StateActive, resp.Room.State)
	assert.Equal(t, 1.0, resp.Room.Playback.Speed)
	assert.True(t, resp.Participant.IsHost)

	claims, err := svc.parseJWT(resp.JWT)
	require.NoError(t, err)
	assert.Equal(t, resp.Room.ID, claims.RoomID)
	assert.Equal(t, "p1", claims.ParticipantID)
}

func TestCreateRoomValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params CreateRoomParams
		want   error
	}{
		{
			name:   "no content ref",
			params: CreateRoomParams{ParticipantID: "p1", DisplayName: "Alice"},
			want:   ErrInvalidContentRef,
		},
		{
			name:   "both content refs",
			params: CreateRoomParams{MovieID: "m", EpisodeID: "e", ParticipantID: "p1", DisplayName: "Alice"},
			want:   ErrInvalidContentRef,
		},
		{
			name:   "negative max participants",
			params: CreateRoomParams{MovieID: "m", ParticipantID: "p1", DisplayName: "Alice", MaxParticipants: -1},
			want:   ErrValidation,
		},
		{
			name:   "blank display name",
			params: CreateRoomParams{MovieID: "m", ParticipantID: "p1", DisplayName: "   "},
			want:   ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRoom(ctx, &tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateRoomCodeExhausted(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.generator = fixedGenerator{code: "SAMECODE"}

	createRoom(t, svc, 0)

	_, err := svc.CreateRoom(context.Background(), &CreateRoomParams{
		EpisodeID:     "episode-1",
		ParticipantID: "p2",
		DisplayName:   "Bob",
	})
	assert.ErrorIs(t, err, ErrRoomCodeExhausted)
}

func TestCreateRoomReusesClosedCode(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.generator = fixedGenerator{code: "SAMECODE"}
	ctx := context.Background()

	first := createRoom(t, svc, 0)
	_, err := svc.CloseRoom(ctx, first.Room.ID)
	require.NoError(t, err)

	second := createRoom(t, svc, 0)
	assert.Equal(t, "SAMECODE", second.Room.Code)
	assert.NotEqual(t, first.Room.ID, second.Room.ID)
}

// create with capacity 2, second participant joins, third is rejected
func TestScenarioCapacity(t *testing.T) {
	svc, publisher, _ := newTestService(t)
	ctx := context.Background()

	created := createRoom(t, svc, 2)

	joined, err := svc.Join(ctx, &JoinParams{RoomID: created.Room.ID, ParticipantID: "p2", DisplayName: "Bob"})
	require.NoError(t, err)
	assert.False(t, joined.Participant.IsHost)
	assert.Equal(t, 2, joined.Room.ParticipantCount)
	assert.NotEmpty(t, joined.JWT)

	_, err = svc.Join(ctx, &JoinParams{RoomID: created.Room.ID, ParticipantID: "p3", DisplayName: "Carol"})
	assert.ErrorIs(t, err, ErrRoomFull)

	participants, err := svc.ListParticipants(ctx, created.Room.ID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "p1", participants[0].ParticipantID)
	assert.True(t, participants[0].IsHost)
	assert.Equal(t, "p2", participants[1].ParticipantID)

	assert.Equal(t, []string{gateway.EventParticipantsUpdated}, publisher.types())
}

func TestJoinIsIdempotent(t *testing.T) {
	svc, publisher, c := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 2)

	c.Advance(time.Minute)
	rejoined, err := svc.Join(ctx, &JoinParams{RoomID: created.Room.ID, ParticipantID: "p1", DisplayName: "Alicia"})
	require.NoError(t, err)
	assert.True(t, rejoined.Participant.IsHost)
	assert.Equal(t, "Alicia", rejoined.Participant.DisplayName)
	assert.Equal(t, c.Now(), rejoined.Participant.LastSeen)
	assert.Equal(t, 1, rejoined.Room.ParticipantCount)
	assert.Empty(t, publisher.types())
}

func TestJoinUnknownRoom(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Join(ctx, &JoinParams{RoomID: "not-a-uuid", ParticipantID: "p2", DisplayName: "Bob"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = svc.Join(ctx, &JoinParams{RoomID: "0b9f2a52-3f4e-4b8e-9d6c-1f0f2b9c8a11", ParticipantID: "p2", DisplayName: "Bob"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeave(t *testing.T) {
	svc, publisher, _ := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)

	require.NoError(t, svc.Leave(ctx, &LeaveParams{RoomID: created.Room.ID, ParticipantID: "p1"}))
	// absent participant
	require.NoError(t, svc.Leave(ctx, &LeaveParams{RoomID: created.Room.ID, ParticipantID: "p1"}))

	got, err := svc.GetRoom(ctx, created.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ParticipantCount)
	assert.Equal(t, StateIdle, got.State)
	assert.Equal(t, []string{gateway.EventParticipantsUpdated}, publisher.types())
}

// a participant that never joined cannot post
func TestScenarioNotAMember(t *testing.T) {
	svc, publisher, _ := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)

	msg, err := svc.PostMessage(ctx, &PostMessageParams{RoomID: created.Room.ID, ParticipantID: "p1", Body: " hello "})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, "Alice", msg.DisplayName)

	_, err = svc.PostMessage(ctx, &PostMessageParams{RoomID: created.Room.ID, ParticipantID: "p2", Body: "hi"})
	assert.ErrorIs(t, err, ErrNotAMember)

	assert.Equal(t, []string{gateway.EventMessageAppended}, publisher.types())
}

func TestPostMessageInvalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)

	_, err := svc.PostMessage(ctx, &PostMessageParams{RoomID: created.Room.ID, ParticipantID: "p1", Body: "   "})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	long := make([]rune, maxMessageLength+1)
	for i := range long {
		long[i] = 'ж'
	}
	_, err = svc.PostMessage(ctx, &PostMessageParams{RoomID: created.Room.ID, ParticipantID: "p1", Body: string(long)})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = svc.PostMessage(ctx, &PostMessageParams{RoomID: created.Room.ID, ParticipantID: "p1", Body: string(long[1:])})
	assert.NoError(t, err)
}

func TestListMessagesOrder(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)

	for _, body := range []string{"one", "two", "three"} {
		c.Advance(time.Second)
		_, err := svc.PostMessage(ctx, &PostMessageParams{RoomID: created.Room.ID, ParticipantID: "p1", Body: body})
		require.NoError(t, err)
	}

	desc, err := svc.ListMessages(ctx, &ListMessagesParams{RoomID: created.Room.ID})
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, "three", desc[0].Body)
	assert.Equal(t, "one", desc[2].Body)

	asc, err := svc.ListMessages(ctx, &ListMessagesParams{RoomID: created.Room.ID, Limit: 2, Order: OrderAsc})
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, "two", asc[0].Body)
	assert.Equal(t, "three", asc[1].Body)
	assert.Less(t, asc[0].Seq, asc[1].Seq)

	_, err = svc.ListMessages(ctx, &ListMessagesParams{RoomID: created.Room.ID, Order: "sideways"})
	assert.ErrorIs(t, err, ErrValidation)
}

func ptr[T any](v T) *T {
	return &v
}

// partial updates merge instead of resetting omitted fields
func TestScenarioPlaybackMerge(t *testing.T) {
	svc, publisher, _ := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)

	_, err := svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomID:    created.Room.ID,
		Position:  ptr(120.0),
		IsPlaying: ptr(true),
	})
	require.NoError(t, err)

	updated, err := svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomID: created.Room.ID,
		Speed:  ptr(1.5),
	})
	require.NoError(t, err)
	assert.Equal(t, Playback{Position: 120, IsPlaying: true, Speed: 1.5}, updated.Playback)

	assert.Equal(t, []string{gateway.EventPlaybackUpdated, gateway.EventPlaybackUpdated}, publisher.types())
}

func TestUpdatePlaybackValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)

	tests := []struct {
		name   string
		params UpdatePlaybackParams
	}{
		{name: "negative position", params: UpdatePlaybackParams{Position: ptr(-1.0)}},
		{name: "zero speed", params: UpdatePlaybackParams{Speed: ptr(0.0)}},
		{name: "speed too high", params: UpdatePlaybackParams{Speed: ptr(17.0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.RoomID = created.Room.ID
			_, err := svc.UpdatePlayback(ctx, &tt.params)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

// codes resolve regardless of case
func TestScenarioResolveCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	svc.generator = fixedGenerator{code: "ABCD1234"}
	created := createRoom(t, svc, 0)

	upper, err := svc.ResolveRoom(ctx, "ABCD1234")
	require.NoError(t, err)
	lower, err := svc.ResolveRoom(ctx, " abcd1234 ")
	require.NoError(t, err)

	assert.Equal(t, created.Room.ID, upper.Room.ID)
	assert.Equal(t, upper.Room.ID, lower.Room.ID)
	assert.Len(t, lower.Participants, 1)

	_, err = svc.ResolveRoom(ctx, "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCloseRoom(t *testing.T) {
	svc, publisher, _ := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)

	closed, err := svc.CloseRoom(ctx, created.Room.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.Equal(t, StateClosed, closed.State)

	_, err = svc.ResolveRoom(ctx, created.Room.Code)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = svc.CloseRoom(ctx, created.Room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = svc.Join(ctx, &JoinParams{RoomID: created.Room.ID, ParticipantID: "p2", DisplayName: "Bob"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	assert.Equal(t, []string{gateway.EventRoomClosed}, publisher.types())
}

func TestListActiveRooms(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	first := createRoom(t, svc, 0)
	c.Advance(time.Second)
	second := createRoom(t, svc, 0)

	rooms, err := svc.ListActiveRooms(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, second.Room.ID, rooms[0].ID)
	assert.Equal(t, first.Room.ID, rooms[1].ID)

	rooms, err = svc.ListActiveRooms(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestAuthorizeMember(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)
	other := createRoom(t, svc, 0)

	claims, err := svc.AuthorizeMember(ctx, created.Room.ID, created.JWT)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.ParticipantID)

	_, err = svc.AuthorizeMember(ctx, other.Room.ID, created.JWT)
	assert.ErrorIs(t, err, ErrNotAMember)

	_, err = svc.AuthorizeMember(ctx, created.Room.ID, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Leave(ctx, &LeaveParams{RoomID: created.Room.ID, ParticipantID: "p1"}))
	_, err = svc.AuthorizeMember(ctx, created.Room.ID, created.JWT)
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestMemberTokenExpires(t *testing.T) {
	svc, _, c := newTestService(t)
	svc.memberTokenTTL = time.Hour
	created := createRoom(t, svc, 0)

	c.Advance(2 * time.Hour)
	_, err := svc.parseJWT(created.JWT)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHeartbeat(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)

	c.Advance(time.Minute)
	require.NoError(t, svc.Heartbeat(ctx, &HeartbeatParams{RoomID: created.Room.ID, ParticipantID: "p1"}))

	participants, err := svc.ListParticipants(ctx, created.Room.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, c.Now(), participants[0].LastSeen)

	err = svc.Heartbeat(ctx, &HeartbeatParams{RoomID: created.Room.ID, ParticipantID: "ghost"})
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestSweep(t *testing.T) {
	svc, publisher, c := newTestService(t)
	ctx := context.Background()
	stale := createRoom(t, svc, 0)
	busy := createRoom(t, svc, 0)

	_, err := svc.Join(ctx, &JoinParams{RoomID: busy.Room.ID, ParticipantID: "p2", DisplayName: "Bob"})
	require.NoError(t, err)

	c.Advance(3 * time.Minute)
	require.NoError(t, svc.Heartbeat(ctx, &HeartbeatParams{RoomID: busy.Room.ID, ParticipantID: "p2"}))

	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	// p1 in both rooms is stale, p2 is fresh
	assert.Equal(t, 2, res.Pruned)
	assert.Equal(t, 0, res.Closed)

	got, err := svc.GetRoom(ctx, stale.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, got.State)

	c.Advance(31 * time.Minute)
	require.NoError(t, svc.Heartbeat(ctx, &HeartbeatParams{RoomID: busy.Room.ID, ParticipantID: "p2"}))

	res, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Pruned)
	assert.Equal(t, 1, res.Closed)

	_, err = svc.GetRoom(ctx, stale.Room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = svc.GetRoom(ctx, busy.Room.ID)
	assert.NoError(t, err)

	assert.Contains(t, publisher.types(), gateway.EventRoomClosed)
}

func TestGetRoomState(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created := createRoom(t, svc, 0)

	_, err := svc.PostMessage(ctx, &PostMessageParams{RoomID: created.Room.ID, ParticipantID: "p1", Body: "hello"})
	require.NoError(t, err)

	state, err := svc.GetRoomState(ctx, created.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Room.ID, state.Room.ID)
	assert.Len(t, state.Participants, 1)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "hello", state.Messages[0].Body)
}
