package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"safelink/pkg/logger"
)

const (
	dueSetKey    = "scheduler:due"
	taskHashKey  = "scheduler:tasks"
	defaultBatch = 32
)

type taskEnvelope struct {
	Name    string `json:"name"`
	Payload []byte `json:"payload"`
}

// RedisScheduler persists delayed tasks in a redis sorted set keyed by fire
// time and polls for due entries. ZRem is the claim: whichever poller
// removes the member owns the dispatch, so multiple instances can share one
// task set.
type RedisScheduler struct {
	client       *redis.Client
	log          *logger.Logger
	pollInterval time.Duration
	batch        int

	mu       sync.RWMutex
	handlers map[string]TaskHandler
}

func NewRedisScheduler(client *redis.Client, log *logger.Logger, pollInterval time.Duration) *RedisScheduler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &RedisScheduler{
		client:       client,
		log:          log,
		pollInterval: pollInterval,
		batch:        defaultBatch,
		handlers:     make(map[string]TaskHandler),
	}
}

func (s *RedisScheduler) Register(name string, handler TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

func (s *RedisScheduler) Schedule(ctx context.Context, name string, payload []byte, delay time.Duration) (string, error) {
	handle := uuid.NewString()

	body, err := json.Marshal(&taskEnvelope{Name: name, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}

	if err := s.client.HSet(ctx, taskHashKey, handle, body).Err(); err != nil {
		return "", fmt.Errorf("failed to store task body: %w", err)
	}

	fireAt := float64(time.Now().Add(delay).UnixMilli())
	err = s.client.ZAdd(ctx, dueSetKey, redis.Z{Score: fireAt, Member: handle}).Err()
	if err != nil {
		s.client.HDel(ctx, taskHashKey, handle)
		return "", fmt.Errorf("failed to schedule task: %w", err)
	}

	return handle, nil
}

func (s *RedisScheduler) Cancel(ctx context.Context, handle string) (bool, error) {
	removed, err := s.client.ZRem(ctx, dueSetKey, handle).Result()
	if err != nil {
		return false, fmt.Errorf("failed to cancel task: %w", err)
	}

	if removed == 0 {
		// Already fired or never existed; not an error by contract.
		return false, nil
	}

	s.client.HDel(ctx, taskHashKey, handle)
	return true, nil
}

// Run polls for due tasks until ctx is cancelled. Dispatches run in their
// own goroutines so a slow handler does not delay the poll loop.
func (s *RedisScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *RedisScheduler) dispatchDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	handles, err := s.client.ZRangeByScore(ctx, dueSetKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   now,
		Count: int64(s.batch),
	}).Result()
	if err != nil {
		s.log.WithError(err).Error("Scheduler poll failed")
		return
	}

	for _, handle := range handles {
		// Claim the task; losing the race means another poller owns it.
		removed, err := s.client.ZRem(ctx, dueSetKey, handle).Result()
		if err != nil || removed == 0 {
			continue
		}

		body, err := s.client.HGet(ctx, taskHashKey, handle).Result()
		s.client.HDel(ctx, taskHashKey, handle)
		if err != nil {
			s.log.WithError(err).WithField("task_id", handle).Error("Scheduled task body missing")
			continue
		}

		var envelope taskEnvelope
		if err := json.Unmarshal([]byte(body), &envelope); err != nil {
			s.log.WithError(err).WithField("task_id", handle).Error("Scheduled task body corrupt")
			continue
		}

		s.mu.RLock()
		handler, ok := s.handlers[envelope.Name]
		s.mu.RUnlock()
		if !ok {
			s.log.WithField("task", envelope.Name).Warn("No handler registered for scheduled task")
			continue
		}

		go func(name, handle string, payload []byte) {
			if err := handler(ctx, payload); err != nil {
				s.log.WithError(err).WithFields(map[string]interface{}{
					"task":    name,
					"task_id": handle,
				}).Error("Scheduled task handler failed")
			}
		}(envelope.Name, handle, envelope.Payload)
	}
}
