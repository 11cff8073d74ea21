// Package queue is a small Redis-backed task queue. Producers LPUSH JSON
// envelopes onto a list, workers BRPOP them, failed tasks are parked in a
// sorted set until their retry is due and exhausted ones land in a dead list.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/config"
)

const defaultMaxAttempts = 5

// Task is the envelope stored in Redis.
type Task struct {
	ID          string          `json:"id"`
	Name        string          `json:"task"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// Enqueuer publishes tasks for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, task string, payload any, queueName string) (string, error)
}

// RedisQueue implements Enqueuer on Redis lists.
type RedisQueue struct {
	logger      *zap.Logger
	client      redis.UniversalClient
	prefix      string
	maxAttempts int
}

var _ Enqueuer = (*RedisQueue)(nil)

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisQueue creates a queue producer on client.
func NewRedisQueue(logger *zap.Logger, client redis.UniversalClient, cfg config.QueueConfig) *RedisQueue {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &RedisQueue{
		logger:      logger.Named("queue.redis"),
		client:      client,
		prefix:      cfg.Prefix,
		maxAttempts: maxAttempts,
	}
}

func (q *RedisQueue) readyKey(queueName string) string {
	return q.prefix + ":" + queueName
}

func (q *RedisQueue) delayedKey(queueName string) string {
	return q.readyKey(queueName) + ":delayed"
}

func (q *RedisQueue) deadKey(queueName string) string {
	return q.readyKey(queueName) + ":dead"
}

// Enqueue wraps payload in a new envelope and pushes it onto queueName.
func (q *RedisQueue) Enqueue(ctx context.Context, task string, payload any, queueName string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", task, err)
	}
	t := Task{
		ID:          uuid.NewString(),
		Name:        task,
		Payload:     raw,
		MaxAttempts: q.maxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}
	if err := q.push(ctx, queueName, &t); err != nil {
		return "", err
	}
	q.logger.Debug("task enqueued",
		zap.String("task", task),
		zap.String("task_id", t.ID),
		zap.String("queue", queueName))
	return t.ID, nil
}

func (q *RedisQueue) push(ctx context.Context, queueName string, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.readyKey(queueName), data).Err(); err != nil {
		return fmt.Errorf("push task %s: %w", t.Name, err)
	}
	return nil
}

// schedule parks t until at.
func (q *RedisQueue) schedule(ctx context.Context, queueName string, t *Task, at time.Time) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return q.client.ZAdd(ctx, q.delayedKey(queueName), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: data,
	}).Err()
}

func (q *RedisQueue) bury(ctx context.Context, queueName string, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return q.client.LPush(ctx, q.deadKey(queueName), data).Err()
}

// promoteDue moves delayed tasks whose retry time has come back onto the
// ready list. ZREM decides ownership so concurrent workers never promote
// the same task twice.
func (q *RedisQueue) promoteDue(ctx context.Context, queueName string, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey(queueName), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, member := range due {
		n, err := q.client.ZRem(ctx, q.delayedKey(queueName), member).Result()
		if err != nil {
			return moved, err
		}
		if n == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.readyKey(queueName), member).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
