package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/quickmeet/signaling/internal/api/http"
	"github.com/quickmeet/signaling/internal/backplane"
	"github.com/quickmeet/signaling/internal/config"
	"github.com/quickmeet/signaling/internal/dispatch"
	"github.com/quickmeet/signaling/internal/repository"
	"github.com/quickmeet/signaling/internal/repository/model"
	"github.com/quickmeet/signaling/internal/security"
	"github.com/quickmeet/signaling/internal/service"
	"github.com/quickmeet/signaling/internal/session"
	"github.com/quickmeet/signaling/internal/ws"
	"github.com/quickmeet/signaling/lib/logger/sl"
	"github.com/quickmeet/signaling/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	ctx := context.Background()

	var (
		meetingRepo repository.MeetingRepository
		memberRepo  repository.MemberRepository
		contactRepo repository.ContactRepository
	)
	if cfg.Database.DSN != "" {
		db, err := connectDatabase(cfg.Database)
		if err != nil {
			log.Error("failed to connect database", sl.Err(err))
			os.Exit(1)
		}
		meetingRepo = repository.NewPostgresMeetingRepository(db)
		memberRepo = repository.NewPostgresMemberRepository(db)
		contactRepo = repository.NewPostgresContactRepository(db)
	} else {
		log.Warn("no database dsn, meeting history is in-memory only")
		meetingRepo = repository.NewInMemoryMeetingRepository()
		memberRepo = repository.NewInMemoryMemberRepository()
		contactRepo = repository.NewInMemoryContactRepository()
	}

	var (
		store       session.Store
		redisClient *redis.Client
	)
	if cfg.Redis.Backplane == "redis" || cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect redis", sl.Err(err))
			os.Exit(1)
		}
		store = session.NewRedisStore(redisClient, cfg.Redis.SessionTTL, cfg.Redis.InviteTTL)
	} else {
		log.Warn("no redis, sessions are in-memory only")
		store = session.NewMemoryStore(cfg.Redis.InviteTTL)
	}

	tokens := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)

	registry := ws.NewRegistry()
	rooms := ws.NewRooms()
	peers := ws.NewPeers(registry, rooms, store, log)

	var bp backplane.Backplane
	if cfg.Redis.Backplane == "redis" {
		bp = backplane.NewRedis(redisClient, cfg.Redis.Channel, log)
	} else {
		bp = backplane.NewLocal()
	}
	peers.SetPublisher(bp.Publish)
	if err := bp.Subscribe(ctx, peers.Deliver); err != nil {
		log.Error("failed to subscribe backplane", sl.Err(err))
		os.Exit(1)
	}
	defer bp.Close()

	meetingService := service.NewMeetingService(meetingRepo, memberRepo, contactRepo, store, peers, peers, log)

	handlers := dispatch.NewRegistry(log)
	handlers.Register(dispatch.NewInitHandler(store, registry, peers))
	handlers.Register(dispatch.NewMeetingHandler(meetingService, registry))
	handlers.Register(dispatch.NewSignalingHandler(peers, log))
	handlers.SetDefault(dispatch.NewForwardHandler(peers))

	dispatcher := dispatch.NewDispatcher(handlers, registry, log)
	gateway := ws.NewGateway(cfg.WS, tokens, store, peers, dispatcher, log)

	authController := httpapi.NewAuthController(tokens, store)
	meetingController := httpapi.NewMeetingController(meetingService)

	router := httpapi.SetupRouter(cfg.HTTP.AllowedOrigins, tokens, store, gateway, authController, meetingController)

	log.Info("starting application",
		slog.String("addr", cfg.HTTP.Address),
		slog.String("backplane", cfg.Redis.Backplane))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.AutoMigrate(&model.Meeting{}, &model.MeetingMember{}, &model.Contact{})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
