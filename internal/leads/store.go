package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

// DefaultKey is the fixed key holding the serialized collection.
const DefaultKey = "crystalcare_leads"

// Observer receives lead lifecycle events, typically a metrics sink.
type Observer interface {
	ObserveLeadCreated(source string)
	ObserveLeadStoreDegraded(reason string)
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		if strings.TrimSpace(key) != "" {
			s.key = key
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides lead id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithObserver attaches a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// Store is the canonical lead collection. Add and UpdateStatus are
// read-modify-write cycles over the whole collection and are serialized by mu.
type Store struct {
	kv       KV
	key      string
	logger   *logging.Logger
	now      func() time.Time
	newID    func() string
	observer Observer

	mu sync.Mutex
}

// NewStore creates a lead store on top of a KV backend.
func NewStore(kv KV, logger *logging.Logger, opts ...Option) *Store {
	if kv == nil {
		panic("leads: kv backend required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize writes the seed collection when nothing is stored yet. It never
// overwrites existing data and is safe to call repeatedly.
func (s *Store) Initialize(ctx context.Context) error {
	data, err := json.Marshal(SeedLeads(s.now()))
	if err != nil {
		return fmt.Errorf("leads: failed to marshal seed: %w", err)
	}
	wrote, err := s.kv.PutIfAbsent(ctx, s.key, data)
	if err != nil {
		return fmt.Errorf("leads: seed failed: %w", err)
	}
	if wrote {
		s.logger.Info("lead store seeded", "key", s.key)
	}
	return nil
}

// List returns every lead, most recently added first. Storage failures and
// malformed data degrade to an empty result.
func (s *Store) List(ctx context.Context) []Lead {
	if err := s.Initialize(ctx); err != nil {
		s.logger.Warn("lead store initialize failed", "error", err)
	}
	leads, err := s.load(ctx)
	if err != nil {
		s.degraded(err)
		return []Lead{}
	}
	return leads
}

// Get returns the lead with the given id.
func (s *Store) Get(ctx context.Context, id string) (Lead, error) {
	for _, lead := range s.List(ctx) {
		if lead.ID == id {
			return lead, nil
		}
	}
	return Lead{}, ErrLeadNotFound
}

// Add materializes a new lead and prepends it to the stored collection.
func (s *Store) Add(ctx context.Context, req NewLead) (Lead, error) {
	if err := req.Validate(); err != nil {
		return Lead{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Initialize(ctx); err != nil {
		return Lead{}, err
	}
	existing, err := s.load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorruptCollection) {
			return Lead{}, err
		}
		s.degraded(err)
		existing = nil
	}

	lead := Lead{
		ID:                 s.uniqueID(existing),
		ReferenceID:        strings.TrimSpace(req.ReferenceID),
		Name:               strings.TrimSpace(req.Name),
		Contact:            strings.TrimSpace(req.Contact),
		Service:            strings.TrimSpace(req.Service),
		Source:             req.Source,
		Date:               s.now().UTC(),
		Status:             StatusNew,
		AppointmentDetails: strings.TrimSpace(req.AppointmentDetails),
	}

	updated := make([]Lead, 0, len(existing)+1)
	updated = append(updated, lead)
	updated = append(updated, existing...)
	if err := s.save(ctx, updated); err != nil {
		return Lead{}, err
	}

	s.logger.Info("lead created",
		"lead_id", lead.ID,
		"reference_id", lead.ReferenceID,
		"source", string(lead.Source),
		"service", lead.Service,
	)
	if s.observer != nil {
		s.observer.ObserveLeadCreated(string(lead.Source))
	}
	return lead, nil
}

// UpdateStatus replaces the status of the matching lead. Unknown ids are a no-op.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptCollection) {
			s.degraded(err)
			return nil
		}
		return err
	}

	found := false
	for i := range existing {
		if existing[i].ID == id {
			existing[i].Status = status
			found = true
			break
		}
	}
	if !found {
		s.logger.Debug("lead status update skipped, id not found", "lead_id", id)
		return nil
	}
	if err := s.save(ctx, existing); err != nil {
		return err
	}
	s.logger.Info("lead status updated", "lead_id", id, "status", string(status))
	return nil
}

func (s *Store) load(ctx context.Context) ([]Lead, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return []Lead{}, nil
		}
		return nil, err
	}
	var leads []Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCollection, err)
	}
	if leads == nil {
		leads = []Lead{}
	}
	return leads, nil
}

func (s *Store) save(ctx context.Context, leads []Lead) error {
	data, err := json.Marshal(leads)
	if err != nil {
		return fmt.Errorf("leads: failed to marshal collection: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("leads: failed to persist collection: %w", err)
	}
	return nil
}

func (s *Store) uniqueID(existing []Lead) string {
	taken := make(map[string]struct{}, len(existing))
	for _, lead := range existing {
		taken[lead.ID] = struct{}{}
	}
	for {
		id := s.newID()
		if _, dup := taken[id]; id != "" && !dup {
			return id
		}
	}
}

func (s *Store) degraded(err error) {
	reason := "unavailable"
	if errors.Is(err, ErrCorruptCollection) {
		reason = "corrupt"
	}
	s.logger.Warn("lead store read degraded to empty", "reason", reason, "error", err)
	if s.observer != nil {
		s.observer.ObserveLeadStoreDegraded(reason)
	}
}
