package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisStore creates a handle over a Redis database shared by every client
// context. All keys live under namespace; changes are announced on
// "<namespace>:changes".
func NewRedisStore(client *redis.Client, namespace string, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
		origin:    uuid.NewString(),
		logger:    logger,
	}
}

type RedisStore struct {
	client    *redis.Client
	namespace string
	origin    string
	logger    *zap.Logger
}

func (r *RedisStore) Origin() string {
	return r.origin
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.SetMany(ctx, map[string]string{key: value})
}

func (r *RedisStore) SetMany(ctx context.Context, entries map[string]string) error {
	return r.Update(ctx, entries, nil)
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	return r.Update(ctx, nil, keys)
}

func (r *RedisStore) Update(ctx context.Context, set map[string]string, del []string) error {
	if len(set) == 0 && len(del) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(del) > 0 {
			full := make([]string, len(del))
			for i, k := range del {
				full[i] = r.key(k)
			}
			pipe.Del(ctx, full...)
		}
		for k, v := range set {
			pipe.Set(ctx, r.key(k), v, 0)
		}
		for _, k := range del {
			if err := r.publish(ctx, pipe, k); err != nil {
				return err
			}
		}
		for k := range set {
			if err := r.publish(ctx, pipe, k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis update failed: %w", err)
	}
	return nil
}

// Watch subscribes to the change channel. The subscription is confirmed before
// Watch returns, so writes made afterwards by other handles are observed.
func (r *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, r.changesChannel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					r.logger.Warn("dropping malformed change notification", zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				if c.Origin == r.origin {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisStore) publish(ctx context.Context, pipe redis.Pipeliner, key string) error {
	payload, err := json.Marshal(Change{Key: key, Origin: r.origin})
	if err != nil {
		return fmt.Errorf("marshal change failed: %w", err)
	}
	pipe.Publish(ctx, r.changesChannel(), string(payload))
	return nil
}

func (r *RedisStore) key(k string) string {
	return fmt.Sprintf("%s:%s", r.namespace, k)
}

func (r *RedisStore) changesChannel() string {
	return fmt.Sprintf("%s:changes", r.namespace)
}
