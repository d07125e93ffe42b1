package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisKV stores the lead collection as a single Redis string with no expiry.
type RedisKV struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewRedisKV wraps a redis client.
func NewRedisKV(client *redis.Client, tracer trace.Tracer) *RedisKV {
	if client == nil {
		panic("leads: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("crystalcare.internal.leads.redis")
	}
	return &RedisKV{redis: client, tracer: tracer}
}

func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "leads.redis.get", trace.WithAttributes(attribute.String("kv.key", key)))
	defer span.End()

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("leads: redis get: %w", err)
	}
	return data, nil
}

func (s *RedisKV) Put(ctx context.Context, key string, value []byte) error {
	ctx, span := s.tracer.Start(ctx, "leads.redis.put", trace.WithAttributes(attribute.String("kv.key", key)))
	defer span.End()

	if err := s.redis.Set(ctx, key, value, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("leads: redis set: %w", err)
	}
	return nil
}

func (s *RedisKV) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "leads.redis.put_if_absent", trace.WithAttributes(attribute.String("kv.key", key)))
	defer span.End()

	ok, err := s.redis.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("leads: redis setnx: %w", err)
	}
	return ok, nil
}
