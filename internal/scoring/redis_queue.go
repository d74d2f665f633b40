package scoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const dequeuePoll = 5 * time.Second

// RedisQueue is a reliable list queue: ids move atomically from the pending
// list to a processing list and are removed on ack.
type RedisQueue struct {
	client     *redis.Client
	pending    string
	processing string
}

func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "stageportal:scoring"
	}
	return &RedisQueue{client: client, pending: prefix + ":queue", processing: prefix + ":processing"}
}

func (q *RedisQueue) Enqueue(ctx context.Context, id int64) error {
	if err := q.client.LPush(ctx, q.pending, id).Err(); err != nil {
		return fmt.Errorf("enqueue scoring job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (int64, error) {
	for {
		value, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", dequeuePoll).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("dequeue scoring job: %w", err)
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			q.client.LRem(ctx, q.processing, 1, value)
			return 0, fmt.Errorf("malformed scoring job %q: %w", value, err)
		}
		return id, nil
	}
}

func (q *RedisQueue) Ack(ctx context.Context, id int64) error {
	if err := q.client.LRem(ctx, q.processing, 1, strconv.FormatInt(id, 10)).Err(); err != nil {
		return fmt.Errorf("ack scoring job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("recover scoring jobs: %w", err)
		}
		moved++
	}
}
