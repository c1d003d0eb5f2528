package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"storyforest/api/internal/metrics"
)

const (
	defaultQueueKey       = "storyforest:notifications"
	defaultPublishTimeout = 2 * time.Second
)

// RedisQueue is an outbox for secondary notifications. Publish pushes onto
// a Redis list and a Relay drains it into the database.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *slog.Logger
	// publishTimeout bounds the push made on the request path.
	publishTimeout time.Duration
}

// NewRedisQueue connects to redisURL and checks the server is reachable.
func NewRedisQueue(redisURL string, logger *slog.Logger) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.ContextTimeoutEnabled = true
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisQueueWithClient(client, logger), nil
}

func NewRedisQueueWithClient(client *redis.Client, logger *slog.Logger) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisQueue{client: client, key: defaultQueueKey, logger: logger, publishTimeout: defaultPublishTimeout}
}

func (q *RedisQueue) Publish(ctx context.Context, n Notification) {
	if n.SelfDirected() {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.publishTimeout)
	defer cancel()
	if err := q.push(pushCtx, n); err != nil {
		metrics.NotificationsDropped.WithLabelValues(string(n.Type), "publish").Inc()
		q.logger.WarnContext(ctx, "notification not queued", "type", n.Type, "error", err)
	}
}

func (q *RedisQueue) push(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// Pop waits up to timeout for the next queued notification. ok is false
// when the wait timed out.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (n Notification, ok bool, err error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, fmt.Errorf("pop notification: %w", err)
	}
	// BRPOP replies with [key, value].
	if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
		return Notification{}, false, fmt.Errorf("unmarshal notification: %w", err)
	}
	return n, true, nil
}

// Len reports how many notifications are waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Relay moves queued notifications into sink until ctx is cancelled.
type Relay struct {
	Queue  *RedisQueue
	Sink   Sink
	Logger *slog.Logger
	// Wait is how long each pop blocks before checking ctx again.
	Wait time.Duration
}

// Run returns nil once ctx is cancelled. It returns an error only when the
// queue's client has been closed, which no retry can recover from.
func (r *Relay) Run(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	wait := r.Wait
	if wait <= 0 {
		wait = time.Second
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, ok, err := r.Queue.Pop(ctx, wait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, redis.ErrClosed) {
				return fmt.Errorf("notification relay stopped: %w", err)
			}
			metrics.NotificationsDropped.WithLabelValues("", "decode").Inc()
			logger.WarnContext(ctx, "notification relay pop failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		if !ok {
			continue
		}
		deliver(ctx, r.Sink, logger, n, "persist")
	}
}
