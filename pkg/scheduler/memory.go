package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryScheduler runs delayed tasks on in-process timers. Suitable for
// tests and single-node deployments; tasks do not survive a restart.
type MemoryScheduler struct {
	mu       sync.Mutex
	handlers map[string]TaskHandler
	timers   map[string]*time.Timer
}

func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{
		handlers: make(map[string]TaskHandler),
		timers:   make(map[string]*time.Timer),
	}
}

func (s *MemoryScheduler) Register(name string, handler TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

func (s *MemoryScheduler) Schedule(ctx context.Context, name string, payload []byte, delay time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handler, ok := s.handlers[name]
	if !ok {
		return "", fmt.Errorf("no handler registered for task %q", name)
	}

	handle := uuid.NewString()

	s.timers[handle] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, handle)
		s.mu.Unlock()

		// Fired tasks run against the background context; the scheduling
		// request's context has usually ended by fire time.
		handler(context.Background(), payload)
	})

	return handle, nil
}

func (s *MemoryScheduler) Cancel(ctx context.Context, handle string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[handle]
	if !ok {
		return false, nil
	}

	delete(s.timers, handle)
	return timer.Stop(), nil
}

// Pending reports the number of not-yet-fired tasks.
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
