package scheduler

import (
	"context"
	"time"
)

// TaskHandler is invoked when a scheduled task fires. Handlers must be
// idempotent: the runner guarantees at-least-once invocation, not
// exactly-once.
type TaskHandler func(ctx context.Context, payload []byte) error

// Scheduler schedules named callbacks for future invocation and supports
// best-effort cancellation by handle. Cancel returns false, not an error,
// when the task already fired or is unknown.
type Scheduler interface {
	Register(name string, handler TaskHandler)
	Schedule(ctx context.Context, name string, payload []byte, delay time.Duration) (string, error)
	Cancel(ctx context.Context, handle string) (bool, error)
}
