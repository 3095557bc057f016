package deviceflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	devicePrefix = "device:"
	userPrefix   = "user:"

	// resolveRetries bounds optimistic-lock retries when concurrent writers race on Resolve
	resolveRetries = 5
)

// RedisStore implements Store on redis so several relay instances can share state.
// Key expiry replaces the sweep of MemoryStore.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces every key written by the store
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a redis-backed store. The client stays owned by the caller.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) deviceKey(code string) string { return s.prefix + devicePrefix + code }
func (s *RedisStore) userKey(code string) string   { return s.prefix + userPrefix + code }

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Add stores both indices with a TTL matching the state's expiry
func (s *RedisStore) Add(ctx context.Context, state *State) error {
	ttl := state.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("adding device code: %w", ErrExpiredToken)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling device code: %w", err)
	}

	userKey := s.userKey(state.UserCode)
	ok, err := s.client.SetNX(ctx, userKey, state.DeviceCode, ttl).Result()
	if err != nil {
		return fmt.Errorf("saving user code: %w", err)
	}
	if !ok {
		return ErrCodeCollision
	}

	ok, err = s.client.SetNX(ctx, s.deviceKey(state.DeviceCode), data, ttl).Result()
	if err != nil || !ok {
		// release the user code claimed above
		if delErr := s.client.Del(ctx, userKey).Err(); delErr != nil && err == nil {
			err = delErr
		}
		if err != nil {
			return fmt.Errorf("saving device code: %w", err)
		}
		return ErrCodeCollision
	}

	return nil
}

// Remove deletes both keys. Only the caller whose DEL removed the device key sees true.
func (s *RedisStore) Remove(ctx context.Context, state *State) (bool, error) {
	pipe := s.client.TxPipeline()
	deviceDel := pipe.Del(ctx, s.deviceKey(state.DeviceCode))
	pipe.Del(ctx, s.userKey(state.UserCode))

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("deleting device code: %w", err)
	}
	return deviceDel.Val() > 0, nil
}

// GetByDeviceCode implements Store
func (s *RedisStore) GetByDeviceCode(ctx context.Context, deviceCode string) (*State, error) {
	data, err := s.client.Get(ctx, s.deviceKey(deviceCode)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting device code: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshaling device code: %w", err)
	}
	if st.Expired(s.now()) {
		return nil, nil
	}
	return &st, nil
}

// GetByUserCode implements Store
func (s *RedisStore) GetByUserCode(ctx context.Context, userCode string) (*State, error) {
	deviceCode, err := s.client.Get(ctx, s.userKey(userCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting user code reference: %w", err)
	}

	return s.GetByDeviceCode(ctx, deviceCode)
}

// Resolve writes the resolution under WATCH so concurrent callbacks cannot both succeed
func (s *RedisStore) Resolve(ctx context.Context, userCode string, res *Resolution) error {
	deviceCode, err := s.client.Get(ctx, s.userKey(userCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrInvalidUserCode
		}
		return fmt.Errorf("getting user code reference: %w", err)
	}
	deviceKey := s.deviceKey(deviceCode)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, deviceKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrInvalidUserCode
		}
		if err != nil {
			return fmt.Errorf("getting device code: %w", err)
		}

		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("unmarshaling device code: %w", err)
		}
		if st.Expired(s.now()) {
			return ErrInvalidUserCode
		}
		if st.Resolution != nil {
			return ErrAlreadyResolved
		}

		st.Resolution = res
		updated, err := json.Marshal(&st)
		if err != nil {
			return fmt.Errorf("marshaling device code: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, deviceKey, updated, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < resolveRetries; i++ {
		err := s.client.Watch(ctx, txf, deviceKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("resolving device code: %w", redis.TxFailedErr)
}

// Close is a no-op; the redis client is closed by its owner
func (s *RedisStore) Close() error {
	return nil
}
