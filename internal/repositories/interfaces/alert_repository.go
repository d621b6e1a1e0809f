package interfaces

import (
	"context"
	"time"

	"safelink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertFilter narrows List queries. A nil Status means all statuses; a nil
// Cursor starts from the newest alert.
type AlertFilter struct {
	Status *models.AlertStatus
	Cursor *primitive.ObjectID
	Limit  int
}

type AlertRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error)

	// Update applies updates unconditionally. Not for status transitions;
	// those go through UpdateIfPending.
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// UpdateIfPending applies updates only while the alert is still pending.
	// Returns false when the conditional write matched nothing, which means
	// another writer resolved the alert first.
	UpdateIfPending(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) (bool, error)

	// MarkStageSent flips the stage's sent flag and records delivery tallies
	// in one write, guarded on the flag still being false. With escalate set,
	// the same write moves a still-pending alert to escalated; a status that
	// already left pending is kept. Returns false when the stage was already
	// marked by a concurrent execution.
	MarkStageSent(ctx context.Context, id primitive.ObjectID, stage int, sentAt time.Time, delivered, failed int, escalate bool) (bool, error)

	// SetTaskHandles stores the scheduler handles of the pending stage
	// executions so a later responder can cancel them.
	SetTaskHandles(ctx context.Context, id primitive.ObjectID, stage1, stage2 *string) error

	// List returns alerts newest-first, at most filter.Limit of them, strictly
	// older than filter.Cursor when set.
	List(ctx context.Context, filter *AlertFilter) ([]*models.Alert, error)
	GetPending(ctx context.Context) ([]*models.Alert, error)
	CountByStatus(ctx context.Context, status models.AlertStatus) (int64, error)
}
