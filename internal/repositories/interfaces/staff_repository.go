package interfaces

import (
	"context"

	"safelink/internal/models"
	"safelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StaffRepository interface {
	Create(ctx context.Context, staff *models.Staff) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Staff, error)
	GetByEmail(ctx context.Context, email string) (*models.Staff, error)

	// GetActiveByRole returns every active roster member with the given role,
	// regardless of reachability; callers filter by channel capability.
	GetActiveByRole(ctx context.Context, role models.StaffRole) ([]*models.Staff, error)

	List(ctx context.Context, params *utils.PaginationParams) ([]*models.Staff, int64, error)

	// UpsertByEmail inserts the record or refreshes an existing one keyed by
	// email. Used by roster seeding.
	UpsertByEmail(ctx context.Context, staff *models.Staff) error

	UpdatePushToken(ctx context.Context, id primitive.ObjectID, token string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}
