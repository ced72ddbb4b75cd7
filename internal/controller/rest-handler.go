package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/party/internal/service/room"
	"github.com/sharetube/party/pkg/rest"
)

type createRoomRequest struct {
	MovieID         string `json:"movie_id" validate:"max=64"`
	EpisodeID       string `json:"episode_id" validate:"max=64"`
	ParticipantID   string `json:"participant_id" validate:"required,max=64"`
	DisplayName     string `json:"display_name" validate:"required,max=50"`
	MaxParticipants int    `json:"max_participants" validate:"gte=0"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !c.readBody(w, r, &req) {
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		MovieID:         req.MovieID,
		EpisodeID:       req.EpisodeID,
		ParticipantID:   req.ParticipantID,
		DisplayName:     req.DisplayName,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": resp})
}

func (c controller) resolveRoom(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.ResolveRoom(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c controller) listActiveRooms(w http.ResponseWriter, r *http.Request) {
	limit, err := c.getQueryInt(r, "limit")
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rooms, err := c.roomService.ListActiveRooms(r.Context(), limit)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rooms})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := c.roomService.GetRoom(r.Context(), chi.URLParam(r, "room-id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rm})
}

func (c controller) closeRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := c.roomService.CloseRoom(r.Context(), chi.URLParam(r, "room-id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rm})
}

type updatePlaybackRequest struct {
	Position  *float64 `json:"position" validate:"omitempty,gte=0"`
	IsPlaying *bool    `json:"is_playing"`
	Speed     *float64 `json:"speed" validate:"omitempty,gt=0,lte=16"`
}

func (c controller) updatePlayback(w http.ResponseWriter, r *http.Request) {
	var req updatePlaybackRequest
	if !c.readBody(w, r, &req) {
		return
	}

	rm, err := c.roomService.UpdatePlayback(r.Context(), &room.UpdatePlaybackParams{
		RoomID:    chi.URLParam(r, "room-id"),
		Position:  req.Position,
		IsPlaying: req.IsPlaying,
		Speed:     req.Speed,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rm})
}

type joinRoomRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,max=64"`
	DisplayName   string `json:"display_name" validate:"required,max=50"`
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if !c.readBody(w, r, &req) {
		return
	}

	resp, err := c.roomService.Join(r.Context(), &room.JoinParams{
		RoomID:        chi.URLParam(r, "room-id"),
		ParticipantID: req.ParticipantID,
		DisplayName:   req.DisplayName,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c controller) leaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.Leave(r.Context(), &room.LeaveParams{
		RoomID:        chi.URLParam(r, "room-id"),
		ParticipantID: chi.URLParam(r, "participant-id"),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) listParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := c.roomService.ListParticipants(r.Context(), chi.URLParam(r, "room-id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": participants})
}

func (c controller) heartbeat(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.Heartbeat(r.Context(), &room.HeartbeatParams{
		RoomID:        chi.URLParam(r, "room-id"),
		ParticipantID: chi.URLParam(r, "participant-id"),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type postMessageRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,max=64"`
	DisplayName   string `json:"display_name" validate:"max=50"`
	Body          string `json:"body"`
}

func (c controller) postMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if !c.readBody(w, r, &req) {
		return
	}

	msg, err := c.roomService.PostMessage(r.Context(), &room.PostMessageParams{
		RoomID:        chi.URLParam(r, "room-id"),
		ParticipantID: req.ParticipantID,
		DisplayName:   req.DisplayName,
		Body:          req.Body,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": msg})
}

func (c controller) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := c.getQueryInt(r, "limit")
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	messages, err := c.roomService.ListMessages(r.Context(), &room.ListMessagesParams{
		RoomID: chi.URLParam(r, "room-id"),
		Limit:  limit,
		Order:  r.URL.Query().Get("order"),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": messages})
}
