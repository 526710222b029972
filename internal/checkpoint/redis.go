package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // default "pytchdeck:"
	TTL      time.Duration // 0 keeps checkpoints forever
	// LockTTL bounds how long a step lock survives a crashed holder.
	LockTTL time.Duration
	// LockPoll is the retry interval while waiting for a held lock.
	LockPoll time.Duration
}

// RedisStore keeps checkpoints in Redis. Each checkpoint is a JSON string key
// and each thread has a set indexing its step names.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	lockTTL  time.Duration
	lockPoll time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisStoreWithClient(client, opts), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, opts RedisOptions) *RedisStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "pytchdeck:"
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	lockPoll := opts.LockPoll
	if lockPoll <= 0 {
		lockPoll = 100 * time.Millisecond
	}
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		ttl:      opts.TTL,
		lockTTL:  lockTTL,
		lockPoll: lockPoll,
	}
}

func (s *RedisStore) checkpointKey(threadID, step string) string {
	return fmt.Sprintf("%scheckpoint:%s:%s", s.prefix, threadID, step)
}

func (s *RedisStore) threadKey(threadID string) string {
	return fmt.Sprintf("%sthread:%s:steps", s.prefix, threadID)
}

func (s *RedisStore) lockKey(threadID, step string) string {
	return fmt.Sprintf("%slock:%s:%s", s.prefix, threadID, step)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, threadID, step string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(threadID, step)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	threadKey := s.threadKey(cp.ThreadID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.checkpointKey(cp.ThreadID, cp.Step), data, s.ttl)
	pipe.SAdd(ctx, threadKey, cp.Step)
	if s.ttl > 0 {
		pipe.Expire(ctx, threadKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
	return nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	steps, err := s.client.SMembers(ctx, s.threadKey(threadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints for thread %s: %w", threadID, err)
	}
	if len(steps) == 0 {
		return []*Checkpoint{}, nil
	}

	keys := make([]string, 0, len(steps))
	for _, step := range steps {
		keys = append(keys, s.checkpointKey(threadID, step))
	}

	// MGet yields nil for expired keys
	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkpoints: %w", err)
	}

	out := make([]*Checkpoint, 0, len(results))
	for _, result := range results {
		str, ok := result.(string)
		if !ok {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal([]byte(str), &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		out = append(out, &cp)
	}
	sortByCompletion(out)
	return out, nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, threadID string) error {
	threadKey := s.threadKey(threadID)
	steps, err := s.client.SMembers(ctx, threadKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints for thread %s: %w", threadID, err)
	}

	keys := []string{threadKey}
	for _, step := range steps {
		keys = append(keys, s.checkpointKey(threadID, step))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear thread %s: %w", threadID, err)
	}
	return nil
}

// unlockScript deletes the lock only when it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock implements Locker with SET NX and a holder token, polling until the lock is free.
func (s *RedisStore) Lock(ctx context.Context, threadID, step string) (func(), error) {
	key := s.lockKey(threadID, step)
	token := uuid.NewString()

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		case <-time.After(s.lockPoll):
		}
	}

	return func() {
		// Detached from ctx so cancellation still releases the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = unlockScript.Run(releaseCtx, s.client, []string{key}, token).Err()
	}, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
