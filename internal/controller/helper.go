package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/sharetube/party/internal/service/room"
	"github.com/sharetube/party/pkg/rest"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// errorStatus maps service errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return http.StatusNotFound, "ROOM_NOT_FOUND"
	case errors.Is(err, room.ErrContentNotFound):
		return http.StatusNotFound, "CONTENT_NOT_FOUND"
	case errors.Is(err, room.ErrRoomFull):
		return http.StatusConflict, "ROOM_FULL"
	case errors.Is(err, room.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, room.ErrInvalidContentRef):
		return http.StatusBadRequest, "INVALID_CONTENT_REF"
	case errors.Is(err, room.ErrInvalidMessage):
		return http.StatusBadRequest, "INVALID_MESSAGE"
	case errors.Is(err, room.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, room.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN"
	case errors.Is(err, room.ErrNotAMember):
		return http.StatusForbidden, "NOT_A_MEMBER"
	case errors.Is(err, room.ErrRoomCodeExhausted):
		return http.StatusServiceUnavailable, "ROOM_CODE_EXHAUSTED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func toErrorBody(err error) (int, errorBody) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	return status, errorBody{Code: code, Message: message}
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := toErrorBody(err)
	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
	} else {
		c.logger.InfoContext(r.Context(), "request rejected", "error", err, "status", status)
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": body})
}

func (c controller) getQueryInt(r *http.Request, key string) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", room.ErrValidation, key)
	}

	return n, nil
}

// readBody decodes and validates the request body. It writes the error
// response itself and reports whether the handler may continue.
func (c controller) readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": errorBody{Code: "INVALID_JSON", Message: err.Error()}})
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.logger.InfoContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return false
	}

	return true
}
