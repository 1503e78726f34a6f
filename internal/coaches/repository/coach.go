package repository

import (
	"context"
	"errors"
	"fmt"

	coacheserrors "teamup/internal/coaches/errors"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "coaches"
)

type CoachRepository interface {
	Create(ctx context.Context, coach *model.Coach) error
	FindByID(ctx context.Context, id string) (*model.Coach, error)
	FindByUserID(ctx context.Context, userID string) (*model.Coach, error)
	UpdateAvailability(ctx context.Context, id string, availability model.Availability) (*model.Coach, error)
	UpdateRating(ctx context.Context, id string, rating float64, totalReviews int) error
	Update(ctx context.Context, id string, set bson.M) (*model.Coach, error)
	Find(ctx context.Context, filter model.CoachFilter, limit int, offset int64) ([]*model.Coach, error)
	Count(ctx context.Context, filter model.CoachFilter) (int64, error)
	// FindNear lists coaches within maxMeters of point, nearest first.
	FindNear(ctx context.Context, point model.GeoPoint, maxMeters float64, filter model.CoachFilter, limit int) ([]*model.Coach, error)
}

type mongoCoachRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCoachRepository(cfg *config.Config) CoachRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCoachRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", coacheserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoCoachRepository) Create(ctx context.Context, coach *model.Coach) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := mongodb.Now()
	coach.CreatedAt = now
	coach.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, coach)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return coacheserrors.ErrDuplicateProfile
		}
		return fmt.Errorf("failed to create coach: %w", err)
	}
	coach.ID = mongodb.InsertedHex(result)
	return nil
}

func (r *mongoCoachRepository) findOne(ctx context.Context, filter bson.M) (*model.Coach, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var coach model.Coach
	if err := r.collection.FindOne(ctx, filter).Decode(&coach); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, coacheserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find coach: %w", err)
	}
	return &coach, nil
}

func (r *mongoCoachRepository) FindByID(ctx context.Context, id string) (*model.Coach, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoCoachRepository) FindByUserID(ctx context.Context, userID string) (*model.Coach, error) {
	return r.findOne(ctx, bson.M{"user_id": userID})
}

func (r *mongoCoachRepository) UpdateAvailability(ctx context.Context, id string, availability model.Availability) (*model.Coach, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{"availability": availability, "updated_at": mongodb.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var coach model.Coach
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&coach); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, coacheserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update coach availability: %w", err)
	}
	return &coach, nil
}

func (r *mongoCoachRepository) UpdateRating(ctx context.Context, id string, rating float64, totalReviews int) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"rating":        rating,
		"total_reviews": totalReviews,
		"updated_at":    mongodb.Now(),
	}})
	if err != nil {
		return fmt.Errorf("failed to update coach rating: %w", err)
	}
	if result.MatchedCount == 0 {
		return coacheserrors.ErrNotFound
	}
	return nil
}

func (r *mongoCoachRepository) Update(ctx context.Context, id string, set bson.M) (*model.Coach, error) {
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
	var coach model.Coach
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": fields}, opts).Decode(&coach); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, coacheserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update coach: %w", err)
	}
	return &coach, nil
}

func query(f model.CoachFilter) bson.M {
	filter := bson.M{"is_active": true}
	if f.Specialty != "" {
		filter["specialties"] = f.Specialty
	}
	if f.MinExperience > 0 {
		filter["experience"] = bson.M{"$gte": f.MinExperience}
	}
	if f.MaxHourlyRate != nil {
		filter["hourly_rate"] = bson.M{"$lte": *f.MaxHourlyRate}
	}
	return filter
}

func (r *mongoCoachRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Coach, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find coaches: %w", err)
	}
	defer cursor.Close(ctx)

	coaches := []*model.Coach{}
	if err := cursor.All(ctx, &coaches); err != nil {
		return nil, fmt.Errorf("failed to decode coaches: %w", err)
	}
	return coaches, nil
}

func (r *mongoCoachRepository) Find(ctx context.Context, filter model.CoachFilter, limit int, offset int64) ([]*model.Coach, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "rating", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, query(filter), opts)
}

func (r *mongoCoachRepository) Count(ctx context.Context, filter model.CoachFilter) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, query(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count coaches: %w", err)
	}
	return count, nil
}

// FindNear relies on the 2dsphere index on location. $nearSphere sorts by
// distance, so no explicit sort is set.
func (r *mongoCoachRepository) FindNear(ctx context.Context, point model.GeoPoint, maxMeters float64, filter model.CoachFilter, limit int) ([]*model.Coach, error) {
	q := query(filter)
	q["location"] = bson.M{
		"$nearSphere": bson.M{
			"$geometry":    point,
			"$maxDistance": maxMeters,
		},
	}
	return r.find(ctx, q, options.Find().SetLimit(int64(limit)))
}
