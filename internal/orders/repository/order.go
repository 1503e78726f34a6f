package repository

import (
	"context"
	"errors"
	"fmt"

	orderserrors "teamup/internal/orders/errors"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "orders"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Order, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// FindByProducts lists orders with at least one line for one of productIDs.
	FindByProducts(ctx context.Context, productIDs []string, limit int, offset int64) ([]*model.Order, error)
	CountByProducts(ctx context.Context, productIDs []string) (int64, error)
	// FindAll lists every order, narrowed to status when it is not empty.
	FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Order, error)
	CountAll(ctx context.Context, status string) (int64, error)
	// Update applies set only while the order is still in fromStatus.
	Update(ctx context.Context, id, fromStatus string, set bson.M) (*model.Order, error)
}

type mongoOrderRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOrderRepository(cfg *config.Config) OrderRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOrderRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", orderserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoOrderRepository) Create(ctx context.Context, order *model.Order) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := mongodb.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	order.ID = mongodb.InsertedHex(result)
	return nil
}

func (r *mongoOrderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var order model.Order
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, orderserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}

func (r *mongoOrderRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Order, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []*model.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (r *mongoOrderRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (r *mongoOrderRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Order, error) {
	return r.find(ctx, bson.M{"user_id": userID}, limit, offset)
}

func (r *mongoOrderRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, bson.M{"user_id": userID})
}

func productsFilter(productIDs []string) bson.M {
	return bson.M{"items.product_id": bson.M{"$in": productIDs}}
}

func (r *mongoOrderRepository) FindByProducts(ctx context.Context, productIDs []string, limit int, offset int64) ([]*model.Order, error) {
	return r.find(ctx, productsFilter(productIDs), limit, offset)
}

func (r *mongoOrderRepository) CountByProducts(ctx context.Context, productIDs []string) (int64, error) {
	return r.count(ctx, productsFilter(productIDs))
}

func statusFilter(status string) bson.M {
	if status == "" {
		return bson.M{}
	}
	return bson.M{"status": status}
}

func (r *mongoOrderRepository) FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Order, error) {
	return r.find(ctx, statusFilter(status), limit, offset)
}

func (r *mongoOrderRepository) CountAll(ctx context.Context, status string) (int64, error) {
	return r.count(ctx, statusFilter(status))
}

func (r *mongoOrderRepository) Update(ctx context.Context, id, fromStatus string, set bson.M) (*model.Order, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	fields := bson.M{"updated_at": mongodb.Now()}
	for k, v := range set {
		fields[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var order model.Order
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid, "status": fromStatus}, bson.M{"$set": fields}, opts).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, orderserrors.ErrStaleStatus
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return &order, nil
}
