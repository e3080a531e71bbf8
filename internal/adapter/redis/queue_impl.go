package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/user/tablemagnifier/internal/repository"
	"github.com/user/tablemagnifier/pkg/utils"
)

// QueueRepoImpl is a repository.SourceQueue over a Redis list. A companion
// set of hashed refs keeps a ref from waiting twice.
type QueueRepoImpl struct {
	client     *redis.Client
	key        string
	pendingKey string
}

// NewQueueRepo creates a queue stored under key.
func NewQueueRepo(client *redis.Client, key string) *QueueRepoImpl {
	return &QueueRepoImpl{client: client, key: key, pendingKey: key + ":pending"}
}

// NewClient builds a client for addr.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Push adds ref to the left side of the list unless it is already waiting.
func (r *QueueRepoImpl) Push(ctx context.Context, ref string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.pendingKey, utils.HashRef(ref)).Result()
	if err != nil {
		return false, err
	}
	if added == 0 {
		return false, nil
	}
	if err := r.client.LPush(ctx, r.key, ref).Err(); err != nil {
		r.client.SRem(ctx, r.pendingKey, utils.HashRef(ref))
		return false, err
	}
	return true, nil
}

// Pop removes and returns the oldest ref from the right side of the list.
// A failure to clear the pending marker still returns the popped ref.
func (r *QueueRepoImpl) Pop(ctx context.Context) (string, error) {
	ref, err := r.client.RPop(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrQueueEmpty
	}
	if err != nil {
		return "", err
	}
	if err := r.client.SRem(ctx, r.pendingKey, utils.HashRef(ref)).Err(); err != nil {
		return ref, err
	}
	return ref, nil
}

// Size returns the current number of items in the queue.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.key).Result()
}
