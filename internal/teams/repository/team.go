package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	teamserrors "teamup/internal/teams/errors"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "teams"
)

type TeamRepository interface {
	Create(ctx context.Context, team *model.Team) error
	FindByID(ctx context.Context, id string) (*model.Team, error)
	// AddPlayer pushes member only while the user is not on the team and the
	// roster is below max_players.
	AddPlayer(ctx context.Context, id string, member model.TeamMember) (*model.Team, error)
	// RemovePlayer pulls a non-captain member.
	RemovePlayer(ctx context.Context, id, userID string) (*model.Team, error)
	// SetPlayerRole changes the role of a non-captain member.
	SetPlayerRole(ctx context.Context, id, userID, role string) (*model.Team, error)
	// Update applies set; a new max_players must still fit the roster.
	Update(ctx context.Context, id string, set bson.M) (*model.Team, error)
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, filter model.TeamFilter, limit int, offset int64) ([]*model.Team, error)
	Count(ctx context.Context, filter model.TeamFilter) (int64, error)
}

type mongoTeamRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoTeamRepository(cfg *config.Config) TeamRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTeamRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", teamserrors.ErrInvalidID, id)
	}
	return oid, nil
}

// removable matches a roster entry for userID that is not the captain.
func removable(userID string) bson.M {
	return bson.M{"$elemMatch": bson.M{
		"user_id": userID,
		"role":    bson.M{"$ne": model.TeamRoleCaptain},
	}}
}

func (r *mongoTeamRepository) Create(ctx context.Context, team *model.Team) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := mongodb.Now()
	team.CreatedAt = now
	team.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, team)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	team.ID = mongodb.InsertedHex(result)
	return nil
}

func (r *mongoTeamRepository) FindByID(ctx context.Context, id string) (*model.Team, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var team model.Team
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&team); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, teamserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return &team, nil
}

func (r *mongoTeamRepository) AddPlayer(ctx context.Context, id string, member model.TeamMember) (*model.Team, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":             oid,
		"players.user_id": bson.M{"$ne": member.UserID},
		"$expr":           bson.M{"$lt": bson.A{bson.M{"$size": "$players"}, "$max_players"}},
	}
	update := bson.M{
		"$push": bson.M{"players": member},
		"$set":  bson.M{"updated_at": mongodb.Now()},
	}

	team, err := r.findOneAndUpdate(ctx, filter, update)
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return team, err
	}

	// Nothing matched: work out which condition failed.
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := current.Member(member.UserID); ok {
		return nil, teamserrors.ErrAlreadyMember
	}
	return nil, teamserrors.ErrTeamFull
}

func (r *mongoTeamRepository) RemovePlayer(ctx context.Context, id, userID string) (*model.Team, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "players": removable(userID)}
	update := bson.M{
		"$pull": bson.M{"players": bson.M{"user_id": userID}},
		"$set":  bson.M{"updated_at": mongodb.Now()},
	}

	team, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, teamserrors.ErrNotMember
	}
	return team, err
}

func (r *mongoTeamRepository) SetPlayerRole(ctx context.Context, id, userID, role string) (*model.Team, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "players": removable(userID)}
	update := bson.M{
		"$set": bson.M{
			"players.$.role": role,
			"updated_at":     mongodb.Now(),
		},
	}

	team, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, teamserrors.ErrNotMember
	}
	return team, err
}

func (r *mongoTeamRepository) Update(ctx context.Context, id string, set bson.M) (*model.Team, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid}
	if maxPlayers, ok := set["max_players"]; ok {
		filter["$expr"] = bson.M{"$lte": bson.A{bson.M{"$size": "$players"}, maxPlayers}}
	}
	fields := bson.M{"updated_at": mongodb.Now()}
	for k, v := range set {
		fields[k] = v
	}

	team, err := r.findOneAndUpdate(ctx, filter, bson.M{"$set": fields})
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return team, err
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, teamserrors.ErrTeamFull
}

func (r *mongoTeamRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	if result.DeletedCount == 0 {
		return teamserrors.ErrNotFound
	}
	return nil
}

// query lists active teams only.
func query(f model.TeamFilter) bson.M {
	filter := bson.M{"is_active": true}
	if f.Query != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(f.Query), "$options": "i"}
		filter["$or"] = []bson.M{{"name": pattern}, {"description": pattern}}
	}
	if f.Sport != "" {
		filter["sport"] = f.Sport
	}
	return filter
}

func (r *mongoTeamRepository) Find(ctx context.Context, filter model.TeamFilter, limit int, offset int64) ([]*model.Team, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, query(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find teams: %w", err)
	}
	defer cursor.Close(ctx)

	teams := []*model.Team{}
	if err := cursor.All(ctx, &teams); err != nil {
		return nil, fmt.Errorf("failed to decode teams: %w", err)
	}
	return teams, nil
}

func (r *mongoTeamRepository) Count(ctx context.Context, filter model.TeamFilter) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, query(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}
	return count, nil
}

// findOneAndUpdate returns mongo.ErrNoDocuments unwrapped so callers can
// classify a failed condition.
func (r *mongoTeamRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*model.Team, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var team model.Team
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&team); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update team: %w", err)
	}
	return &team, nil
}
