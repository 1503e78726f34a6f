package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	deliverieserrors "teamup/internal/deliveries/errors"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "deliveries"
)

type DeliveryRepository interface {
	Create(ctx context.Context, delivery *model.Delivery) error
	FindByID(ctx context.Context, id string) (*model.Delivery, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*model.Delivery, error)
	FindByOrder(ctx context.Context, orderID string) ([]*model.Delivery, error)
	// FindAll lists deliveries, narrowed to status when it is not empty.
	FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Delivery, error)
	CountAll(ctx context.Context, status string) (int64, error)
	// AppendAttempt records attempt and moves the delivery to attempt.Status
	// while it is still in fromStatus. deliveredAt is only written when set.
	AppendAttempt(ctx context.Context, id, fromStatus string, attempt model.DeliveryAttempt, deliveredAt *time.Time) (*model.Delivery, error)
}

type mongoDeliveryRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoDeliveryRepository(cfg *config.Config) DeliveryRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDeliveryRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", deliverieserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoDeliveryRepository) Create(ctx context.Context, delivery *model.Delivery) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := mongodb.Now()
	delivery.CreatedAt = now
	delivery.UpdatedAt = now
	if delivery.Attempts == nil {
		delivery.Attempts = []model.DeliveryAttempt{}
	}

	result, err := r.collection.InsertOne(ctx, delivery)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return deliverieserrors.ErrDuplicateTracking
		}
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	delivery.ID = mongodb.InsertedHex(result)
	return nil
}

func (r *mongoDeliveryRepository) FindByID(ctx context.Context, id string) (*model.Delivery, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoDeliveryRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*model.Delivery, error) {
	return r.findOne(ctx, bson.M{"tracking_number": trackingNumber})
}

func (r *mongoDeliveryRepository) findOne(ctx context.Context, filter bson.M) (*model.Delivery, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var delivery model.Delivery
	if err := r.collection.FindOne(ctx, filter).Decode(&delivery); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, deliverieserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find delivery: %w", err)
	}
	return &delivery, nil
}

func (r *mongoDeliveryRepository) FindByOrder(ctx context.Context, orderID string) ([]*model.Delivery, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find deliveries: %w", err)
	}
	defer cursor.Close(ctx)

	deliveries := []*model.Delivery{}
	if err := cursor.All(ctx, &deliveries); err != nil {
		return nil, fmt.Errorf("failed to decode deliveries: %w", err)
	}
	return deliveries, nil
}

func statusFilter(status string) bson.M {
	if status == "" {
		return bson.M{}
	}
	return bson.M{"status": status}
}

func (r *mongoDeliveryRepository) FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Delivery, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, statusFilter(status), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find deliveries: %w", err)
	}
	defer cursor.Close(ctx)

	deliveries := []*model.Delivery{}
	if err := cursor.All(ctx, &deliveries); err != nil {
		return nil, fmt.Errorf("failed to decode deliveries: %w", err)
	}
	return deliveries, nil
}

func (r *mongoDeliveryRepository) CountAll(ctx context.Context, status string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, statusFilter(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count deliveries: %w", err)
	}
	return count, nil
}

func (r *mongoDeliveryRepository) AppendAttempt(ctx context.Context, id, fromStatus string, attempt model.DeliveryAttempt, deliveredAt *time.Time) (*model.Delivery, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"status":     attempt.Status,
		"updated_at": mongodb.Now(),
	}
	filter := bson.M{"_id": oid, "status": fromStatus}
	if deliveredAt != nil {
		set["actual_delivery_date"] = *deliveredAt
		// The delivery date is written once.
		filter["actual_delivery_date"] = bson.M{"$exists": false}
	}

	update := bson.M{
		"$set":  set,
		"$push": bson.M{"attempts": attempt},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var delivery model.Delivery
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&delivery); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, deliverieserrors.ErrStaleStatus
		}
		return nil, fmt.Errorf("failed to update delivery: %w", err)
	}
	return &delivery, nil
}
