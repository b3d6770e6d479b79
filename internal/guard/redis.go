package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's value.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisRegistry stores "<owner>|<token>" under one key with a TTL, so a
// crashed run frees the guard once the TTL lapses.
type RedisRegistry struct {
	client *redis.Client
	script *redis.Script
	key    string
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, key string, ttl time.Duration) (*RedisRegistry, error) {
	key = strings.TrimSpace(key)
	if client == nil || key == "" || ttl <= 0 {
		return nil, ErrInvalidConfig
	}
	return &RedisRegistry{
		client: client,
		script: redis.NewScript(releaseScript),
		key:    key,
		ttl:    ttl,
	}, nil
}

func (r *RedisRegistry) Claim(ctx context.Context, owner string) (bool, error) {
	if strings.TrimSpace(owner) == "" {
		return false, ErrInvalidConfig
	}
	value := owner + "|" + uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, value, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", r.key, err)
	}
	return ok, nil
}

func (r *RedisRegistry) ActiveOwner(ctx context.Context) (string, error) {
	value, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s owner: %w", r.key, err)
	}
	owner, _, _ := strings.Cut(value, "|")
	return owner, nil
}

func (r *RedisRegistry) Release(ctx context.Context, owner string) error {
	value, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotOwner
	}
	if err != nil {
		return fmt.Errorf("read %s owner: %w", r.key, err)
	}
	if current, _, _ := strings.Cut(value, "|"); current != owner {
		return ErrNotOwner
	}
	deleted, err := r.script.Run(ctx, r.client, []string{r.key}, value).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", r.key, err)
	}
	if deleted == 0 {
		return ErrNotOwner
	}
	return nil
}
