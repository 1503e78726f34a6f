package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	tournamentserrors "teamup/internal/tournaments/errors"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	"teamup/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "tournaments"
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *model.Tournament) error
	FindByID(ctx context.Context, id string) (*model.Tournament, error)
	// RegisterTeam pushes reg only while the team is absent, the bracket has
	// room and now is before the registration deadline.
	RegisterTeam(ctx context.Context, id string, reg model.TeamRegistration, now time.Time) (*model.Tournament, error)
	SetRegistrationStatus(ctx context.Context, id, teamID, status string) (*model.Tournament, error)
	// Update applies set; a new max_teams must still fit the registrations.
	Update(ctx context.Context, id string, set bson.M) (*model.Tournament, error)
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, filter model.TournamentFilter, limit int, offset int64) ([]*model.Tournament, error)
	Count(ctx context.Context, filter model.TournamentFilter) (int64, error)
}

type mongoTournamentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoTournamentRepository(cfg *config.Config) TournamentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTournamentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", tournamentserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoTournamentRepository) Create(ctx context.Context, tournament *model.Tournament) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := mongodb.Now()
	tournament.CreatedAt = now
	tournament.UpdatedAt = now
	if tournament.Teams == nil {
		tournament.Teams = []model.TeamRegistration{}
	}

	result, err := r.collection.InsertOne(ctx, tournament)
	if err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	tournament.ID = mongodb.InsertedHex(result)
	return nil
}

func (r *mongoTournamentRepository) FindByID(ctx context.Context, id string) (*model.Tournament, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var tournament model.Tournament
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&tournament); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tournamentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find tournament: %w", err)
	}
	return &tournament, nil
}

func (r *mongoTournamentRepository) RegisterTeam(ctx context.Context, id string, reg model.TeamRegistration, now time.Time) (*model.Tournament, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":                   oid,
		"teams.team_id":         bson.M{"$ne": reg.TeamID},
		"registration_deadline": bson.M{"$gt": now},
		"$expr":                 bson.M{"$lt": bson.A{bson.M{"$size": "$teams"}, "$max_teams"}},
	}
	update := bson.M{
		"$push": bson.M{"teams": reg},
		"$set":  bson.M{"updated_at": now},
	}

	tournament, err := r.findOneAndUpdate(ctx, filter, update)
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return tournament, err
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case !now.Before(current.RegistrationDeadline):
		return nil, tournamentserrors.ErrRegistrationClosed
	case hasTeam(current, reg.TeamID):
		return nil, tournamentserrors.ErrAlreadyRegistered
	default:
		return nil, tournamentserrors.ErrFull
	}
}

func (r *mongoTournamentRepository) SetRegistrationStatus(ctx context.Context, id, teamID, status string) (*model.Tournament, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "teams.team_id": teamID}
	update := bson.M{
		"$set": bson.M{
			"teams.$.status": status,
			"updated_at":     mongodb.Now(),
		},
	}

	tournament, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, tournamentserrors.ErrNotRegistered
	}
	return tournament, err
}

func (r *mongoTournamentRepository) Update(ctx context.Context, id string, set bson.M) (*model.Tournament, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid}
	if maxTeams, ok := set["max_teams"]; ok {
		filter["$expr"] = bson.M{"$lte": bson.A{bson.M{"$size": "$teams"}, maxTeams}}
	}
	fields := bson.M{"updated_at": mongodb.Now()}
	for k, v := range set {
		fields[k] = v
	}

	tournament, err := r.findOneAndUpdate(ctx, filter, bson.M{"$set": fields})
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return tournament, err
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, tournamentserrors.ErrFull
}

func (r *mongoTournamentRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete tournament: %w", err)
	}
	if result.DeletedCount == 0 {
		return tournamentserrors.ErrNotFound
	}
	return nil
}

func query(f model.TournamentFilter) bson.M {
	filter := bson.M{}
	if f.Query != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(f.Query), "$options": "i"}
		filter["$or"] = []bson.M{{"name": pattern}, {"description": pattern}}
	}
	if f.Sport != "" {
		filter["sport"] = f.Sport
	}
	switch f.Phase {
	case model.TournamentUpcoming:
		filter["start_date"] = bson.M{"$gt": f.Now}
	case model.TournamentOngoing:
		filter["start_date"] = bson.M{"$lte": f.Now}
		filter["end_date"] = bson.M{"$gte": f.Now}
	case model.TournamentCompleted:
		filter["end_date"] = bson.M{"$lt": f.Now}
	}
	return filter
}

func (r *mongoTournamentRepository) Find(ctx context.Context, filter model.TournamentFilter, limit int, offset int64) ([]*model.Tournament, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, query(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find tournaments: %w", err)
	}
	defer cursor.Close(ctx)

	tournaments := []*model.Tournament{}
	if err := cursor.All(ctx, &tournaments); err != nil {
		return nil, fmt.Errorf("failed to decode tournaments: %w", err)
	}
	return tournaments, nil
}

func (r *mongoTournamentRepository) Count(ctx context.Context, filter model.TournamentFilter) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, query(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count tournaments: %w", err)
	}
	return count, nil
}

func (r *mongoTournamentRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*model.Tournament, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var tournament model.Tournament
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&tournament); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}
	return &tournament, nil
}

func hasTeam(t *model.Tournament, teamID string) bool {
	_, ok := t.Registration(teamID)
	return ok
}
