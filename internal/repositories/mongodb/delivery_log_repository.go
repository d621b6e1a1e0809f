package mongodb

import (
	"context"
	"time"

	"safelink/internal/models"
	"safelink/internal/repositories/interfaces"
	"safelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type deliveryLogRepository struct {
	collection *mongo.Collection
}

func NewDeliveryLogRepository(db *mongo.Database) interfaces.DeliveryLogRepository {
	return &deliveryLogRepository{
		collection: db.Collection("delivery_logs"),
	}
}

func (r *deliveryLogRepository) Create(ctx context.Context, log *models.DeliveryLog) error {
	log.ID = primitive.NewObjectID()
	if log.AttemptedAt.IsZero() {
		log.AttemptedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, log)
	if err != nil {
		return utils.NewStorageError("create delivery log", err)
	}

	return nil
}

func (r *deliveryLogRepository) GetByAlertID(ctx context.Context, alertID primitive.ObjectID) ([]*models.DeliveryLog, error) {
	filter := bson.M{"alert_id": alertID}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "attempted_at", Value: 1}}))
	if err != nil {
		return nil, utils.NewStorageError("find delivery logs", err)
	}
	defer cursor.Close(ctx)

	var logs []*models.DeliveryLog
	for cursor.Next(ctx) {
		var log models.DeliveryLog
		if err := cursor.Decode(&log); err != nil {
			return nil, utils.NewStorageError("decode delivery log", err)
		}
		logs = append(logs, &log)
	}

	return logs, nil
}

func (r *deliveryLogRepository) CountByStatus(ctx context.Context, alertID primitive.ObjectID, status models.DeliveryStatus) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"alert_id": alertID,
		"status":   status,
	})
	if err != nil {
		return 0, utils.NewStorageError("count delivery logs", err)
	}

	return count, nil
}
