package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisclient "github.com/gulautos/storefront-backend/pkg/redis"
)

type redisCarts interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(ownerID string) string
}

// RedisStore keeps each cart as a JSON blob with a sliding TTL.
type RedisStore struct {
	client redisCarts
	ttl    time.Duration
}

// NewRedisStore builds a store over client. A non-positive ttl keeps carts
// forever.
func NewRedisStore(client redisCarts, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, ownerID string) (State, error) {
	raw, err := s.client.Get(ctx, s.client.CartKey(ownerID))
	if err != nil {
		if redisclient.IsNil(err) {
			return Empty(), nil
		}
		return State{}, fmt.Errorf("get cart: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// An unreadable blob is replaced on the next save.
		return Empty(), nil
	}
	if state.Items == nil {
		state.Items = []Item{}
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, ownerID string, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.client.CartKey(ownerID), string(payload), ttl); err != nil {
		return fmt.Errorf("set cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, ownerID string) error {
	if err := s.client.Del(ctx, s.client.CartKey(ownerID)); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
