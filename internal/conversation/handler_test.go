package conversation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(f.manager, logging.New("error"))
	r := chi.NewRouter()
	r.Post("/chat/sessions", h.Start)
	r.Get("/chat/sessions/{id}", h.Get)
	r.Post("/chat/sessions/{id}/messages", h.Message)
	return r
}

func TestHandler_StartAndMessage(t *testing.T) {
	f := newFixture(t, DialogueResponse{Text: "Hi Bob, which service?"})
	router := newTestRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var session SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "CHAT-1234", session.Code)
	require.Len(t, session.Messages, 1)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/sessions/"+session.ID+"/messages", strings.NewReader(`{"text":"I'm Bob"}`))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var turn TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	assert.Equal(t, "Hi Bob, which service?", turn.Reply.Text)
	assert.Len(t, turn.Messages, 3)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/sessions/"+session.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Len(t, session.Messages, 3)
}

func TestHandler_Errors(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	s := f.manager.Start(t.Context())

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown session", "/chat/sessions/missing/messages", `{"text":"hi"}`, http.StatusNotFound},
		{"bad json", "/chat/sessions/" + s.ID() + "/messages", `{`, http.StatusBadRequest},
		{"blank text", "/chat/sessions/" + s.ID() + "/messages", `{"text":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
