package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingRepository "teamup/internal/bookings/repository"
	coachRepository "teamup/internal/coaches/repository"
	deliveryRepository "teamup/internal/deliveries/repository"
	"teamup/internal/migrations/mongo/validators"
	orderRepository "teamup/internal/orders/repository"
	productRepository "teamup/internal/products/repository"
	teamRepository "teamup/internal/teams/repository"
	tournamentRepository "teamup/internal/tournaments/repository"
	userRepository "teamup/internal/users/repository"
	"teamup/pkg/logger"
)

var (
	UsersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	}

	CoachesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "specialties", Value: 1}, {Key: "rating", Value: -1}}},
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		// A booking holds its slot only while active_slot_key is present.
		{
			Keys: bson.D{{Key: "active_slot_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active_slot_key": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{
			{Key: "coach_id", Value: 1},
			{Key: "date", Value: 1},
			{Key: "slot", Value: 1},
		}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "coach_id", Value: 1}, {Key: "rating", Value: 1}}},
	}

	SlotLocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}

	ProductsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "seller_id", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "sport", Value: 1}}},
	}

	OrdersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "delivery_assigned", Value: 1}}},
		{Keys: bson.D{{Key: "items.product_id", Value: 1}}},
	}

	DeliveriesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tracking_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	TeamsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "captain_id", Value: 1}}},
		{Keys: bson.D{{Key: "players.user_id", Value: 1}}},
	}

	TournamentsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "organizer_id", Value: 1}}},
		{Keys: bson.D{{Key: "sport", Value: 1}, {Key: "start_date", Value: 1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		userRepository.CollectionName:            {Indexes: UsersIndexes, Validator: validators.UserValidator},
		coachRepository.CollectionName:           {Indexes: CoachesIndexes, Validator: validators.CoachValidator},
		bookingRepository.CollectionName:         {Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		bookingRepository.SlotLockCollectionName: {Indexes: SlotLocksIndexes},
		productRepository.CollectionName:         {Indexes: ProductsIndexes, Validator: validators.ProductValidator},
		orderRepository.CollectionName:           {Indexes: OrdersIndexes, Validator: validators.OrderValidator},
		deliveryRepository.CollectionName:        {Indexes: DeliveriesIndexes, Validator: validators.DeliveryValidator},
		teamRepository.CollectionName:            {Indexes: TeamsIndexes, Validator: validators.TeamValidator},
		tournamentRepository.CollectionName:      {Indexes: TournamentsIndexes, Validator: validators.TournamentValidator},
	}
}

// RunMigration creates every collection with its schema validator and
// indexes. It is safe to run repeatedly.
func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}
	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
