package mongodb

import (
	"context"
	"fmt"
	"time"

	"safelink/internal/models"
	"safelink/internal/repositories/interfaces"
	"safelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type alertRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

func NewAlertRepository(db *mongo.Database, cache CacheService) interfaces.AlertRepository {
	return &alertRepository{
		collection: db.Collection("alerts"),
		cache:      cache,
	}
}

// Basic CRUD operations
func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) error {
	alert.ID = primitive.NewObjectID()
	alert.Status = models.AlertStatusPending
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, alert)
	if err != nil {
		return utils.NewStorageError("create alert", err)
	}

	r.cacheAlert(ctx, alert)

	return nil
}

func (r *alertRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	// Try cache first for pending alerts
	if alert := r.getAlertFromCache(ctx, id.Hex()); alert != nil {
		return alert, nil
	}

	var alert models.Alert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrAlertNotFound
		}
		return nil, utils.NewStorageError("get alert", err)
	}

	r.cacheAlert(ctx, &alert)

	return &alert, nil
}

func (r *alertRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return utils.NewStorageError("update alert", err)
	}
	if result.MatchedCount == 0 {
		return utils.ErrAlertNotFound
	}

	r.invalidateAlertCache(ctx, id.Hex())

	return nil
}

// Conditional writes

func (r *alertRepository) UpdateIfPending(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) (bool, error) {
	updates["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "status": models.AlertStatusPending},
		bson.M{"$set": updates},
	)
	if err != nil {
		return false, utils.NewStorageError("update alert", err)
	}

	r.invalidateAlertCache(ctx, id.Hex())

	// MatchedCount 0 means the alert left the pending state first.
	return result.MatchedCount > 0, nil
}

func (r *alertRepository) MarkStageSent(ctx context.Context, id primitive.ObjectID, stage int, sentAt time.Time, delivered, failed int, escalate bool) (bool, error) {
	sentField := fmt.Sprintf("stage%d_sent", stage)
	filter := bson.M{"_id": id, sentField: false}

	updates := bson.M{"updated_at": time.Now()}
	updates[sentField] = true
	updates[fmt.Sprintf("stage%d_sent_at", stage)] = sentAt
	updates[fmt.Sprintf("stage%d_delivered", stage)] = delivered
	updates[fmt.Sprintf("stage%d_failed", stage)] = failed
	updates[fmt.Sprintf("stage%d_task_id", stage)] = nil

	var result *mongo.UpdateResult
	var err error
	if escalate {
		// Pipeline update so the status transition rides the same write:
		// only a still-pending alert moves to escalated, a human response
		// that landed first keeps its status.
		updates["status"] = bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$status", models.AlertStatusPending}},
			models.AlertStatusEscalated,
			"$status",
		}}
		result, err = r.collection.UpdateOne(ctx, filter, mongo.Pipeline{
			bson.D{{Key: "$set", Value: updates}},
		})
	} else {
		result, err = r.collection.UpdateOne(ctx, filter, bson.M{"$set": updates})
	}
	if err != nil {
		return false, utils.NewStorageError("mark stage sent", err)
	}

	r.invalidateAlertCache(ctx, id.Hex())

	return result.MatchedCount > 0, nil
}

func (r *alertRepository) SetTaskHandles(ctx context.Context, id primitive.ObjectID, stage1, stage2 *string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"stage1_task_id": stage1,
			"stage2_task_id": stage2,
			"updated_at":     time.Now(),
		}},
	)
	if err != nil {
		return utils.NewStorageError("set task handles", err)
	}

	r.invalidateAlertCache(ctx, id.Hex())

	return nil
}

// Listing

func (r *alertRepository) List(ctx context.Context, filter *interfaces.AlertFilter) ([]*models.Alert, error) {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.Cursor != nil {
		query["_id"] = bson.M{"$lt": *filter.Cursor}
	}

	limit := utils.ClampListLimit(filter.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, utils.NewStorageError("list alerts", err)
	}
	defer cursor.Close(ctx)

	var alerts []*models.Alert
	for cursor.Next(ctx) {
		var alert models.Alert
		if err := cursor.Decode(&alert); err != nil {
			return nil, utils.NewStorageError("decode alert", err)
		}
		alerts = append(alerts, &alert)
	}

	return alerts, nil
}

func (r *alertRepository) GetPending(ctx context.Context) ([]*models.Alert, error) {
	status := models.AlertStatusPending
	return r.List(ctx, &interfaces.AlertFilter{Status: &status, Limit: utils.MaxPageSize})
}

func (r *alertRepository) CountByStatus(ctx context.Context, status models.AlertStatus) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, utils.NewStorageError("count alerts", err)
	}
	return count, nil
}

// Cache helpers

func (r *alertRepository) cacheAlert(ctx context.Context, alert *models.Alert) {
	if r.cache != nil && alert.Status == models.AlertStatusPending {
		cacheKey := utils.CacheAlertPrefix + alert.ID.Hex()
		r.cache.Set(ctx, cacheKey, alert, utils.PendingAlertCacheTTL)
	}
}

func (r *alertRepository) getAlertFromCache(ctx context.Context, alertID string) *models.Alert {
	if r.cache == nil {
		return nil
	}

	var alert models.Alert
	if err := r.cache.Get(ctx, utils.CacheAlertPrefix+alertID, &alert); err != nil {
		return nil
	}

	return &alert
}

func (r *alertRepository) invalidateAlertCache(ctx context.Context, alertID string) {
	if r.cache != nil {
		r.cache.Delete(ctx, utils.CacheAlertPrefix+alertID)
	}
}
