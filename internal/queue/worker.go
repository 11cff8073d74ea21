package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/config"
)

// HandlerFunc processes the payload of one task. A returned error schedules
// a retry until the task runs out of attempts.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Observer is notified around every handler run.
type Observer interface {
	TaskStart(task string)
	TaskDone(task string, since time.Time, status string)
}

const (
	StatusSucceeded = "succeeded"
	StatusRetried   = "retried"
	StatusDead      = "dead"
)

// Worker consumes one queue with a fixed number of goroutines.
type Worker struct {
	logger      *zap.Logger
	queue       *RedisQueue
	queueName   string
	concurrency int
	backoff     time.Duration
	pollTimeout time.Duration
	observer    Observer

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewWorker creates a consumer for queueName.
func NewWorker(logger *zap.Logger, q *RedisQueue, queueName string, cfg config.QueueConfig) *Worker {
	w := &Worker{
		logger:      logger.Named("queue.worker").With(zap.String("queue", queueName)),
		queue:       q,
		queueName:   queueName,
		concurrency: cfg.Concurrency,
		backoff:     cfg.RetryBackoff,
		pollTimeout: cfg.PollTimeout,
		handlers:    make(map[string]HandlerFunc),
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.backoff <= 0 {
		w.backoff = time.Second
	}
	if w.pollTimeout <= 0 {
		w.pollTimeout = 5 * time.Second
	}
	return w
}

// SetObserver installs o. Call before Run.
func (w *Worker) SetObserver(o Observer) {
	w.observer = o
}

// Handle registers fn for tasks named task.
func (w *Worker) Handle(task string, fn HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[task] = fn
}

func (w *Worker) handler(task string) (HandlerFunc, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn, ok := w.handlers[task]
	return fn, ok
}

// Run consumes tasks until ctx is cancelled. In-flight handlers finish
// before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", zap.Int("concurrency", w.concurrency))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.promoteLoop(ctx)
	}()
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx)
		}()
	}
	wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

func (w *Worker) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := w.queue.promoteDue(ctx, w.queueName, now); err != nil {
				if ctx.Err() == nil {
					w.logger.Error("failed to promote delayed tasks", zap.Error(err))
				}
			} else if n > 0 {
				w.logger.Debug("promoted delayed tasks", zap.Int("count", n))
			}
		}
	}
}

func (w *Worker) consumeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := w.queue.client.BRPop(ctx, w.pollTimeout, w.queue.readyKey(w.queueName)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.logger.Error("failed to pop task", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(w.backoff):
			}
			continue
		}
		// BRPOP replies with [key, value].
		if len(res) == 2 {
			// handlers run detached from shutdown so a task is never half done
			w.process(context.WithoutCancel(ctx), res[1])
		}
	}
}

// process runs one raw envelope and routes it to success, retry or the dead list.
func (w *Worker) process(ctx context.Context, raw string) {
	var t Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		w.logger.Error("dropping malformed task", zap.Error(err), zap.String("raw", raw))
		return
	}
	log := w.logger.With(zap.String("task", t.Name), zap.String("task_id", t.ID))

	fn, ok := w.handler(t.Name)
	if !ok {
		t.LastError = "no handler registered"
		log.Error("no handler for task, moving to dead list")
		if err := w.queue.bury(ctx, w.queueName, &t); err != nil {
			log.Error("failed to bury task", zap.Error(err))
		}
		return
	}

	start := time.Now()
	if w.observer != nil {
		w.observer.TaskStart(t.Name)
	}
	t.Attempts++
	err := w.safeCall(ctx, fn, t.Payload)
	status := w.settle(ctx, log, &t, err)
	if w.observer != nil {
		w.observer.TaskDone(t.Name, start, status)
	}
}

func (w *Worker) safeCall(ctx context.Context, fn HandlerFunc, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, payload)
}

func (w *Worker) settle(ctx context.Context, log *zap.Logger, t *Task, err error) string {
	if err == nil {
		log.Debug("task succeeded", zap.Int("attempts", t.Attempts))
		return StatusSucceeded
	}
	t.LastError = err.Error()

	if t.Attempts >= t.MaxAttempts {
		log.Error("task exhausted its attempts", zap.Int("attempts", t.Attempts), zap.Error(err))
		if berr := w.queue.bury(ctx, w.queueName, t); berr != nil {
			log.Error("failed to bury task", zap.Error(berr))
		}
		return StatusDead
	}

	delay := w.retryDelay(t.Attempts)
	log.Warn("task failed, scheduling retry",
		zap.Int("attempts", t.Attempts),
		zap.Duration("delay", delay),
		zap.Error(err))
	if serr := w.queue.schedule(ctx, w.queueName, t, time.Now().Add(delay)); serr != nil {
		log.Error("failed to schedule retry", zap.Error(serr))
	}
	return StatusRetried
}

// retryDelay doubles the base backoff per attempt, capped at one hour.
func (w *Worker) retryDelay(attempts int) time.Duration {
	d := w.backoff
	for i := 1; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
