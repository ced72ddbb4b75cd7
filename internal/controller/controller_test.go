package controller

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/gateway"
	"github.com/sharetube/party/internal/repository/content"
	roomRedis "github.com/sharetube/party/internal/repository/room/redis"
	"github.com/sharetube/party/internal/service/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	logger := slog.Default()
	hub := gateway.NewHub(gateway.DefaultQueueSize, logger)
	roomService := room.New(roomRedis.NewRepo(rc, time.Hour, logger), content.NewPassthrough(), hub, &room.Config{
		Secret:                 "secret",
		BaseURL:                "https://party.example",
		DefaultMaxParticipants: 10,
	}, logger)

	srv := httptest.NewServer(NewController(roomService, hub, logger).GetMux())
	t.Cleanup(srv.Close)

	return srv
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Error  *errorBody      `json:"error"`
	Errors []any           `json:"errors"`
}

func doJSON(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}

	return resp.StatusCode, env
}

func createTestRoom(t *testing.T, srv *httptest.Server, maxParticipants int) room.CreateRoomResponse {
	t.Helper()
	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rooms", map[string]any{
		"movie_id":         "movie-1",
		"participant_id":   "p1",
		"display_name":     "Alice",
		"max_participants": maxParticipants,
	})
	require.Equal(t, http.StatusCreated, status)

	var resp room.CreateRoomResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))

	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateRoomErrors(t *testing.T) {
	srv := newTestServer(t)

	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rooms", map[string]any{
		"movie_id":       "movie-1",
		"episode_id":     "episode-1",
		"participant_id": "p1",
		"display_name":   "Alice",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CONTENT_REF", env.Error.Code)

	status, env = doJSON(t, http.MethodPost, srv.URL+"/api/v1/rooms", map[string]any{
		"movie_id": "movie-1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, env.Errors)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/rooms", map[string]any{
		"movie_id": "movie-1",
		"unknown":  true,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRoomLifecycle(t *testing.T) {
	srv := newTestServer(t)
	created := createTestRoom(t, srv, 2)
	roomURL := srv.URL + "/api/v1/rooms/" + created.Room.ID

	status, env := doJSON(t, http.MethodGet, srv.URL+"/room/"+strings.ToLower(created.Room.Code), nil)
	require.Equal(t, http.StatusOK, status)
	var resolved room.RoomWithParticipants
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.Equal(t, created.Room.ID, resolved.Room.ID)

	status, _ = doJSON(t, http.MethodPost, roomURL+"/participants", map[string]any{
		"participant_id": "p2",
		"display_name":   "Bob",
	})
	assert.Equal(t, http.StatusOK, status)

	status, env = doJSON(t, http.MethodPost, roomURL+"/participants", map[string]any{
		"participant_id": "p3",
		"display_name":   "Carol",
	})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ROOM_FULL", env.Error.Code)

	status, env = doJSON(t, http.MethodPatch, roomURL+"/playback", map[string]any{
		"position":   120,
		"is_playing": true,
	})
	require.Equal(t, http.StatusOK, status)
	status, env = doJSON(t, http.MethodPatch, roomURL+"/playback", map[string]any{
		"speed": 1.5,
	})
	require.Equal(t, http.StatusOK, status)
	var rm room.Room
	require.NoError(t, json.Unmarshal(env.Data, &rm))
	assert.Equal(t, room.Playback{Position: 120, IsPlaying: true, Speed: 1.5}, rm.Playback)

	status, _ = doJSON(t, http.MethodPatch, roomURL+"/playback", map[string]any{"speed": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPatch, roomURL+"/playback", map[string]any{"speed": -1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, roomURL+"/messages", map[string]any{
		"participant_id": "p2",
		"body":           "hello",
	})
	assert.Equal(t, http.StatusCreated, status)

	status, env = doJSON(t, http.MethodPost, roomURL+"/messages", map[string]any{
		"participant_id": "stranger",
		"body":           "hi",
	})
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_A_MEMBER", env.Error.Code)

	status, env = doJSON(t, http.MethodGet, roomURL+"/messages?order=asc&limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	var messages []room.Message
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "Bob", messages[0].DisplayName)

	status, _ = doJSON(t, http.MethodGet, roomURL+"/messages?limit=ten", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, roomURL+"/participants/p2/heartbeat", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, http.MethodDelete, roomURL+"/participants/p2", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = doJSON(t, http.MethodDelete, roomURL+"/participants/p2", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, http.MethodPost, roomURL+"/participants/p2/heartbeat", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = doJSON(t, http.MethodGet, roomURL+"/participants", nil)
	require.Equal(t, http.StatusOK, status)
	var participants []room.Participant
	require.NoError(t, json.Unmarshal(env.Data, &participants))
	assert.Len(t, participants, 1)

	status, _ = doJSON(t, http.MethodPost, roomURL+"/close", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, http.MethodGet, roomURL, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/rooms/code/"+created.Room.Code, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListActiveRooms(t *testing.T) {
	srv := newTestServer(t)
	createTestRoom(t, srv, 0)
	createTestRoom(t, srv, 0)

	status, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/rooms?limit=1", nil)
	require.Equal(t, http.StatusOK, status)
	var rooms []room.Room
	require.NoError(t, json.Unmarshal(env.Data, &rooms))
	assert.Len(t, rooms, 1)
}

func wsURL(srv *httptest.Server, roomID, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/rooms/" + roomID + "?token=" + token
}

type wsOutput struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readOutput(t *testing.T, conn *websocket.Conn) wsOutput {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var out wsOutput
	require.NoError(t, conn.ReadJSON(&out))

	return out
}

func TestSubscribe(t *testing.T) {
	srv := newTestServer(t)
	created := createTestRoom(t, srv, 0)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, created.Room.ID, created.JWT), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	out := readOutput(t, conn)
	require.Equal(t, gateway.EventRoomState, out.Type)
	var state room.RoomState
	require.NoError(t, json.Unmarshal(out.Payload, &state))
	assert.Equal(t, created.Room.ID, state.Room.ID)
	assert.Len(t, state.Participants, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "POST_MESSAGE",
		"payload": map[string]any{"body": "hello"},
	}))
	out = readOutput(t, conn)
	require.Equal(t, gateway.EventMessageAppended, out.Type)
	var msg room.Message
	require.NoError(t, json.Unmarshal(out.Payload, &msg))
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, "p1", msg.ParticipantID)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "UPDATE_PLAYBACK",
		"payload": map[string]any{"position": 42.5, "is_playing": true},
	}))
	out = readOutput(t, conn)
	require.Equal(t, gateway.EventPlaybackUpdated, out.Type)
	var rm room.Room
	require.NoError(t, json.Unmarshal(out.Payload, &rm))
	assert.Equal(t, 42.5, rm.Playback.Position)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "POST_MESSAGE",
		"payload": map[string]any{"body": "   "},
	}))
	out = readOutput(t, conn)
	require.Equal(t, outputError, out.Type)
	var body errorBody
	require.NoError(t, json.Unmarshal(out.Payload, &body))
	assert.Equal(t, "INVALID_MESSAGE", body.Code)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "DANCE"}))
	out = readOutput(t, conn)
	require.Equal(t, outputError, out.Type)
	require.NoError(t, json.Unmarshal(out.Payload, &body))
	assert.Equal(t, "UNKNOWN_MESSAGE_TYPE", body.Code)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/rooms/"+created.Room.ID+"/close", nil)
	require.Equal(t, http.StatusOK, status)
	out = readOutput(t, conn)
	assert.Equal(t, gateway.EventRoomClosed, out.Type)
}

func TestSubscribeUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	created := createTestRoom(t, srv, 0)
	other := createTestRoom(t, srv, 0)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, created.Room.ID, "garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, other.Room.ID, created.JWT), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
