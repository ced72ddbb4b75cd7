package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type input struct {
	Name string `json:"name"`
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "ok", body: `{"name":"a"}`},
		{name: "empty", body: ``, wantErr: "body must not be empty"},
		{name: "unknown field", body: `{"nope":1}`, wantErr: "unknown field"},
		{name: "wrong type", body: `{"name":1}`, wantErr: `incorrect JSON type for field "name"`},
		{name: "trailing", body: `{"name":"a"}{}`, wantErr: "single JSON value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var in input
			err := ReadJSON(r, &in)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "a", in.Name)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusCreated, Envelope{"data": "x"}))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":"x"}`, w.Body.String())
}
