package main

import (
	_ "time/tzdata"

	"teamup/internal/access"
	bookingHandler "teamup/internal/bookings/handler"
	bookingRepository "teamup/internal/bookings/repository"
	bookingService "teamup/internal/bookings/service"
	coachHandler "teamup/internal/coaches/handler"
	coachRepository "teamup/internal/coaches/repository"
	coachService "teamup/internal/coaches/service"
	deliveryHandler "teamup/internal/deliveries/handler"
	deliveryRepository "teamup/internal/deliveries/repository"
	deliveryService "teamup/internal/deliveries/service"
	orderHandler "teamup/internal/orders/handler"
	orderRepository "teamup/internal/orders/repository"
	orderService "teamup/internal/orders/service"
	productHandler "teamup/internal/products/handler"
	productRepository "teamup/internal/products/repository"
	productService "teamup/internal/products/service"
	teamHandler "teamup/internal/teams/handler"
	teamRepository "teamup/internal/teams/repository"
	teamService "teamup/internal/teams/service"
	tournamentHandler "teamup/internal/tournaments/handler"
	tournamentRepository "teamup/internal/tournaments/repository"
	tournamentService "teamup/internal/tournaments/service"
	userHandler "teamup/internal/users/handler"
	userRepository "teamup/internal/users/repository"
	userService "teamup/internal/users/service"
	"teamup/pkg/app"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	"teamup/pkg/contracts"
	mongodb "teamup/pkg/db/mongo"
	"teamup/pkg/events"
	"teamup/pkg/kafka"
	kafka_config "teamup/pkg/kafka/config"
	kafka_middleware "teamup/pkg/kafka/middleware"
	"teamup/pkg/validation"
)

const ServiceName = "teamup-api"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting TeamUp API")
	bus := newBus(cfg)
	handlers := initHandlers(cfg, bus)

	serverApp := app.NewApplication(cfg, bus)
	serverApp.SetApp(handlers...)
	serverApp.Run()
}

// newBus returns an in-process bus, forwarding committed events to Kafka
// when it is enabled.
func newBus(cfg *config.Config) *events.Bus {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, events stay in-process")
		return events.NewBus(cfg.Log, nil)
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.EventsTopic, cfg.EventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		metrics := &kafka_middleware.Metrics{}
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(metrics.ProducerMiddleware())
	}
	return events.NewBus(cfg.Log, events.NewKafkaPublisher(producer, ServiceName))
}

func initHandlers(cfg *config.Config, bus *events.Bus) []contracts.Handler {
	validator := validation.New(cfg.Log)
	tx := mongodb.NewTransactionManager(cfg.Client.Mongo)

	userRepo := userRepository.NewMongoUserRepository(cfg)
	coachRepo := coachRepository.NewMongoCoachRepository(cfg)
	bookingRepo := bookingRepository.NewMongoBookingRepository(cfg)
	lockRepo := bookingRepository.NewSlotLockRepository(cfg)
	productRepo := productRepository.NewMongoProductRepository(cfg)
	orderRepo := orderRepository.NewMongoOrderRepository(cfg)
	deliveryRepo := deliveryRepository.NewMongoDeliveryRepository(cfg)
	teamRepo := teamRepository.NewMongoTeamRepository(cfg)
	tournamentRepo := tournamentRepository.NewMongoTournamentRepository(cfg)

	guard := access.NewGuard(auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer), userRepo, cfg.Log)

	users := userService.NewUserService(userRepo, validator, cfg)
	coaches := coachService.NewCoachService(coachRepo, userRepo, bookingRepo, validator, cfg)
	bookings := bookingService.NewBookingService(
		bookingRepo,
		lockRepo,
		coachRepo,
		tx,
		bus,
		bookingService.NewMatcher(cfg.Location, mongodb.Now),
		validator,
		cfg,
	)
	products := productService.NewProductService(productRepo, validator, cfg)
	orders := orderService.NewOrderService(orderRepo, productRepo, userRepo, tx, bus, validator, cfg)
	deliveries := deliveryService.NewDeliveryService(deliveryRepo, orderRepo, tx, bus, validator, cfg)
	teams := teamService.NewTeamService(teamRepo, userRepo, validator, cfg)
	tournaments := tournamentService.NewTournamentService(tournamentRepo, teamRepo, validator, cfg)

	coachService.Subscribe(bus, coaches)
	orderService.Subscribe(bus, orders)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return []contracts.Handler{
		userHandler.NewUserHandler(users, guard, cfg.Log),
		coachHandler.NewCoachHandler(coaches, guard, cfg.Log),
		bookingHandler.NewBookingHandler(bookings, guard, cfg.Log),
		productHandler.NewProductHandler(products, guard, cfg.Log),
		orderHandler.NewOrderHandler(orders, guard, cfg.Log),
		deliveryHandler.NewDeliveryHandler(deliveries, guard, cfg.Log),
		teamHandler.NewTeamHandler(teams, guard, cfg.Log),
		tournamentHandler.NewTournamentHandler(tournaments, guard, cfg.Log),
	}
}
