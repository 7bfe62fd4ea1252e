package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStale is returned when a guarded write lost the race to a newer generation.
var ErrStale = errors.New("session: stale generation")

// Store keeps session-scoped JSON values in Redis. Every write refreshes the
// TTL so state lives as long as the session is active.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore constructs a session store.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "sess:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Client exposes the underlying Redis client.
func (s *Store) Client() *redis.Client { return s.client }

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Key returns the Redis key holding name for session sid.
func (s *Store) Key(sid, name string) string {
	return s.prefix + sid + ":" + name
}

// Get loads a JSON value into dst and reports whether it existed.
func (s *Store) Get(ctx context.Context, sid, name string, dst any) (bool, error) {
	if err := s.check(sid); err != nil {
		return false, err
	}
	data, err := s.client.Get(ctx, s.Key(sid, name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v as JSON.
func (s *Store) Set(ctx context.Context, sid, name string, v any) error {
	if err := s.check(sid); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.Key(sid, name), data, s.ttl).Err()
}

// Delete removes a value.
func (s *Store) Delete(ctx context.Context, sid, name string) error {
	if err := s.check(sid); err != nil {
		return err
	}
	return s.client.Del(ctx, s.Key(sid, name)).Err()
}

// Next starts a new generation for counter and returns it. Earlier
// generations become stale.
func (s *Store) Next(ctx context.Context, sid, counter string) (int64, error) {
	if err := s.check(sid); err != nil {
		return 0, err
	}
	key := s.Key(sid, counter)
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Current returns the latest generation of counter, or 0 when none started.
func (s *Store) Current(ctx context.Context, sid, counter string) (int64, error) {
	if err := s.check(sid); err != nil {
		return 0, err
	}
	gen, err := s.client.Get(ctx, s.Key(sid, counter)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetIfCurrent stores v under name only while gen is still the latest
// generation of counter. It returns ErrStale otherwise, including when the
// counter moves between the read and the write.
func (s *Store) SetIfCurrent(ctx context.Context, sid, counter string, gen int64, name string, v any) error {
	if err := s.check(sid); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	genKey := s.Key(sid, counter)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != strconv.FormatInt(gen, 10) {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.Key(sid, name), data, s.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStale
	}
	return err
}

func (s *Store) check(sid string) error {
	if s == nil || s.client == nil {
		return errors.New("session: store not configured")
	}
	if sid == "" {
		return ErrNoSession
	}
	return nil
}
