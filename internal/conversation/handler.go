package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

// Handler wires HTTP requests to chat sessions.
type Handler struct {
	manager *Manager
	logger  *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(manager *Manager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// SessionResponse describes a chat session.
type SessionResponse struct {
	ID       string        `json:"id"`
	Code     string        `json:"code"`
	Messages []ChatMessage `json:"messages"`
}

// MessageRequest is the body of a chat turn.
type MessageRequest struct {
	Text string `json:"text"`
}

// Start handles POST /chat/sessions.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Start(r.Context())
	h.writeJSON(w, http.StatusCreated, SessionResponse{ID: s.ID(), Code: s.Code(), Messages: s.Messages()})
}

// Get handles GET /chat/sessions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{ID: s.ID(), Code: s.Code(), Messages: s.Messages()})
}

// Message handles POST /chat/sessions/{id}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.HandleTurn(r.Context(), req.Text)
	switch {
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, "Message text is required", http.StatusBadRequest)
		return
	case errors.Is(err, ErrTurnInFlight):
		http.Error(w, "A reply is already being prepared", http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("failed to process message", "error", err, "session_id", s.ID())
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "id")
	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Chat session not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("failed to load chat session", "error", err, "session_id", id)
		http.Error(w, "Failed to load chat session", http.StatusInternalServerError)
		return nil, false
	}
	return s, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
