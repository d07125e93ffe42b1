package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/internal/sessions"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
	"golang.org/x/sync/singleflight"
)

const defaultDialogueTimeout = 30 * time.Second

// ManagerConfig wires the collaborators shared by all chat sessions.
type ManagerConfig struct {
	Capability Capability
	Store      LeadWriter
	Notifier   Notifier
	// History is optional; without it sessions live only in process memory.
	History    HistoryStore
	Observer   Observer
	Timeout    time.Duration
	SessionTTL time.Duration
	// NewCode overrides session code generation.
	NewCode func() string
}

// Manager creates and looks up chat sessions.
type Manager struct {
	deps    *deps
	active  *sessions.Registry[*Session]
	newCode func() string

	// restores collapses concurrent history loads for the same id.
	restores singleflight.Group
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig, logger *logging.Logger) *Manager {
	if cfg.Capability == nil {
		panic("conversation: dialogue capability required")
	}
	if cfg.Store == nil {
		panic("conversation: lead writer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDialogueTimeout
	}
	newCode := cfg.NewCode
	if newCode == nil {
		newCode = func() string { return leads.NewReferenceCode(leads.ChatReferencePrefix) }
	}
	return &Manager{
		deps: &deps{
			capability: cfg.Capability,
			store:      cfg.Store,
			notifier:   cfg.Notifier,
			history:    cfg.History,
			observer:   cfg.Observer,
			timeout:    cfg.Timeout,
			logger:     logger,
		},
		active:  sessions.NewRegistry[*Session](cfg.SessionTTL),
		newCode: newCode,
	}
}

// Start opens a new session with the greeting as its first message.
func (m *Manager) Start(ctx context.Context) *Session {
	s := newSession(uuid.NewString(), m.newCode(), m.deps)
	m.active.Put(s.id, s)

	s.mu.Lock()
	rec := s.recordLocked()
	s.mu.Unlock()
	s.persist(ctx, rec)

	m.deps.logger.Info("chat session started", "session_id", s.id, "session_code", s.code)
	return s
}

// Get returns a live session, restoring it from the history store if needed.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if s, ok := m.active.Get(id); ok {
		return s, nil
	}
	if m.deps.history == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	v, err, _ := m.restores.Do(id, func() (any, error) {
		if s, ok := m.active.Get(id); ok {
			return s, nil
		}
		rec, err := m.deps.history.Load(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("conversation: restore session: %w", err)
		}
		s, _ := m.active.GetOrPut(id, restoreSession(rec, m.deps))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}
