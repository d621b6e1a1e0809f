package interfaces

import (
	"context"

	"safelink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DeliveryLogRepository interface {
	Create(ctx context.Context, log *models.DeliveryLog) error
	GetByAlertID(ctx context.Context, alertID primitive.ObjectID) ([]*models.DeliveryLog, error)
	CountByStatus(ctx context.Context, alertID primitive.ObjectID, status models.DeliveryStatus) (int64, error)
}
