package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/internal/notify"
	"github.com/wolfman30/crystalcare-intake/internal/sessions"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

// HandlerConfig configures the booking HTTP surface.
type HandlerConfig struct {
	Recipient   string
	SubmitDelay time.Duration
	SessionTTL  time.Duration
	Observer    Observer
	Now         func() time.Time
}

// Handler serves wizard sessions over HTTP.
type Handler struct {
	store    LeadWriter
	notifier Notifier
	cfg      HandlerConfig
	sessions *sessions.Registry[*Wizard]
	logger   *logging.Logger
}

// NewHandler creates a booking handler.
func NewHandler(store LeadWriter, notifier Notifier, cfg HandlerConfig, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Handler{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		sessions: sessions.NewRegistry[*Wizard](cfg.SessionTTL),
		logger:   logger,
	}
}

// Routes mounts the wizard endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/options", h.Options)
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Patch("/", h.UpdateFields)
		r.Post("/next", h.Next)
		r.Post("/back", h.Back)
		r.Post("/submit", h.Submit)
		r.Post("/reset", h.Reset)
	})
	return r
}

// SessionResponse is the wizard view returned by every session endpoint.
type SessionResponse struct {
	ID         string      `json:"id"`
	Step       Step        `json:"step"`
	Draft      Draft       `json:"draft"`
	Errors     FieldErrors `json:"errors"`
	Submitting bool        `json:"submitting"`
	MinDate    string      `json:"minDate"`
}

// SubmitResponse is returned by a successful submission.
type SubmitResponse struct {
	Step        Step       `json:"step"`
	ReferenceID string     `json:"referenceId"`
	Lead        leads.Lead `json:"lead"`
	Mailto      string     `json:"mailto,omitempty"`
}

// OptionsResponse lists selectable values.
type OptionsResponse struct {
	Departments []Choice `json:"departments"`
	TimeSlots   []Choice `json:"timeSlots"`
	MinDate     string   `json:"minDate"`
}

// Options handles GET /booking/options.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OptionsResponse{
		Departments: Departments,
		TimeSlots:   TimeSlots,
		MinDate:     h.minDate(),
	})
}

// CreateSession handles POST /booking/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	wiz := NewWizard(h.store, h.notifier,
		WithSubmitDelay(h.cfg.SubmitDelay),
		WithObserver(h.cfg.Observer),
		WithLogger(h.logger),
	)
	id := h.sessions.Create(wiz)
	h.logger.Debug("booking session created", "session_id", id)
	writeJSON(w, http.StatusCreated, h.view(id, wiz, wiz.State()))
}

// GetSession handles GET /booking/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, wiz, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.view(id, wiz, wiz.State()))
}

// UpdateFields handles PATCH /booking/sessions/{id} with a {field: value} body.
func (h *Handler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	id, wiz, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var fields map[Field]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	state, err := wiz.SetFields(fields)
	if err != nil {
		h.writeWizardError(w, id, wiz, state, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(id, wiz, state))
}

// Next handles POST /booking/sessions/{id}/next.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*Wizard).Next)
}

// Back handles POST /booking/sessions/{id}/back.
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*Wizard).Back)
}

// Reset handles POST /booking/sessions/{id}/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*Wizard).Reset)
}

// Submit handles POST /booking/sessions/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, wiz, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sub, err := wiz.Submit(r.Context())
	if err != nil {
		h.writeWizardError(w, id, wiz, wiz.State(), err)
		return
	}
	resp := SubmitResponse{
		Step:        sub.State.Step,
		ReferenceID: sub.ReferenceID,
		Lead:        sub.Lead,
	}
	if h.cfg.Recipient != "" {
		resp.Mailto = notify.MailtoURL(h.cfg.Recipient, sub.Notification)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn func(*Wizard) (State, error)) {
	id, wiz, ok := h.lookup(w, r)
	if !ok {
		return
	}
	state, err := fn(wiz)
	if err != nil {
		h.writeWizardError(w, id, wiz, state, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(id, wiz, state))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (string, *Wizard, bool) {
	id := chi.URLParam(r, "id")
	wiz, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "booking session not found")
		return "", nil, false
	}
	return id, wiz, true
}

func (h *Handler) writeWizardError(w http.ResponseWriter, id string, wiz *Wizard, state State, err error) {
	var fe FieldErrors
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusUnprocessableEntity, h.view(id, wiz, state))
	case errors.Is(err, ErrSubmissionInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnknownField):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("booking request failed", "error", err, "session_id", id)
		writeError(w, http.StatusInternalServerError, "failed to submit booking")
	}
}

func (h *Handler) view(id string, wiz *Wizard, state State) SessionResponse {
	return SessionResponse{
		ID:         id,
		Step:       state.Step,
		Draft:      state.Draft,
		Errors:     state.Errors,
		Submitting: wiz.Submitting(),
		MinDate:    h.minDate(),
	}
}

func (h *Handler) minDate() string {
	return h.cfg.Now().UTC().Format("2006-01-02")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
