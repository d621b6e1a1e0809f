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

type staffRepository struct {
	collection *mongo.Collection
}

func NewStaffRepository(db *mongo.Database) interfaces.StaffRepository {
	return &staffRepository{
		collection: db.Collection("staff"),
	}
}

func (r *staffRepository) Create(ctx context.Context, staff *models.Staff) error {
	staff.ID = primitive.NewObjectID()
	if staff.Status == "" {
		staff.Status = models.StaffStatusActive
	}
	staff.CreatedAt = time.Now()
	staff.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, staff)
	if err != nil {
		return utils.NewStorageError("create staff", err)
	}

	return nil
}

func (r *staffRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Staff, error) {
	var staff models.Staff
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&staff)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrStaffNotFound
		}
		return nil, utils.NewStorageError("get staff", err)
	}

	return &staff, nil
}

func (r *staffRepository) GetByEmail(ctx context.Context, email string) (*models.Staff, error) {
	var staff models.Staff
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&staff)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrStaffNotFound
		}
		return nil, utils.NewStorageError("get staff by email", err)
	}

	return &staff, nil
}

func (r *staffRepository) GetActiveByRole(ctx context.Context, role models.StaffRole) ([]*models.Staff, error) {
	filter := bson.M{
		"role":   role,
		"status": models.StaffStatusActive,
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, utils.NewStorageError("find staff by role", err)
	}
	defer cursor.Close(ctx)

	var members []*models.Staff
	for cursor.Next(ctx) {
		var staff models.Staff
		if err := cursor.Decode(&staff); err != nil {
			return nil, utils.NewStorageError("decode staff", err)
		}
		members = append(members, &staff)
	}

	return members, nil
}

func (r *staffRepository) List(ctx context.Context, params *utils.PaginationParams) ([]*models.Staff, int64, error) {
	filter := bson.M{}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, utils.NewStorageError("count staff", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, utils.NewStorageError("list staff", err)
	}
	defer cursor.Close(ctx)

	var members []*models.Staff
	for cursor.Next(ctx) {
		var staff models.Staff
		if err := cursor.Decode(&staff); err != nil {
			return nil, 0, utils.NewStorageError("decode staff", err)
		}
		members = append(members, &staff)
	}

	return members, total, nil
}

func (r *staffRepository) UpsertByEmail(ctx context.Context, staff *models.Staff) error {
	now := time.Now()
	if staff.Status == "" {
		staff.Status = models.StaffStatusActive
	}

	update := bson.M{
		"$set": bson.M{
			"name":        staff.Name,
			"phone":       staff.Phone,
			"designation": staff.Designation,
			"role":        staff.Role,
			"status":      staff.Status,
			"push_token":  staff.PushToken,
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"created_at": now,
		},
	}

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"email": staff.Email},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return utils.NewStorageError("upsert staff", err)
	}

	return nil
}

func (r *staffRepository) UpdatePushToken(ctx context.Context, id primitive.ObjectID, token string) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"push_token": token, "updated_at": time.Now()}},
	)
	if err != nil {
		return utils.NewStorageError("update push token", err)
	}
	if result.MatchedCount == 0 {
		return utils.ErrStaffNotFound
	}

	return nil
}

func (r *staffRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return utils.NewStorageError("delete staff", err)
	}

	return nil
}
