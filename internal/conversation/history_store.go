package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultConversationTTL = 24 * time.Hour

// ErrSessionNotFound is returned when no transcript exists for a session id.
var ErrSessionNotFound = errors.New("conversation: session not found")

// SessionRecord is the persisted form of a chat session.
type SessionRecord struct {
	ID       string        `json:"id"`
	Code     string        `json:"code"`
	Messages []ChatMessage `json:"messages"`
	// Accepted maps the canonical key of each recorded saveLead call to the
	// patient name it was accepted for.
	Accepted  map[string]string `json:"accepted,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// HistoryStore persists chat sessions between turns.
type HistoryStore interface {
	Save(ctx context.Context, rec SessionRecord) error
	Load(ctx context.Context, id string) (SessionRecord, error)
}

// RedisHistoryStore keeps sessions in Redis with a sliding TTL.
type RedisHistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewRedisHistoryStore(redis *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisHistoryStore {
	if redis == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("crystalcare.internal.conversation.history")
	}
	if ttl <= 0 {
		ttl = defaultConversationTTL
	}
	return &RedisHistoryStore{
		redis:  redis,
		tracer: tracer,
		ttl:    ttl,
	}
}

func (s *RedisHistoryStore) Save(ctx context.Context, rec SessionRecord) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, conversationKey(rec.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) Load(ctx context.Context, id string) (SessionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, conversationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		span.RecordError(err)
		return SessionRecord{}, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		span.RecordError(err)
		return SessionRecord{}, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return rec, nil
}

func conversationKey(id string) string {
	return fmt.Sprintf("crystalcare:chat:%s", id)
}

// MemoryHistoryStore keeps sessions in process memory.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	records map[string]SessionRecord
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{records: make(map[string]SessionRecord)}
}

func (m *MemoryHistoryStore) Save(_ context.Context, rec SessionRecord) error {
	rec.Messages = append([]ChatMessage(nil), rec.Messages...)
	rec.Accepted = cloneAccepted(rec.Accepted)
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryHistoryStore) Load(_ context.Context, id string) (SessionRecord, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	rec.Messages = append([]ChatMessage(nil), rec.Messages...)
	rec.Accepted = cloneAccepted(rec.Accepted)
	return rec, nil
}

func cloneAccepted(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
