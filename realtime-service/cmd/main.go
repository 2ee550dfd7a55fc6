package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/auth"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/config"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/directory"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/handler"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/ice"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/kafka"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/lifecycle"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/messaging"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/presence"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/service"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/signaling"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/store"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/typing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "realtime-service"})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting realtime-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder()

	// Initialize auth
	jwtManager, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jwt manager")
	}
	verifier := auth.NewJWTVerifier(jwtManager)

	// Initialize message store
	backend, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open message store")
	}
	messageStore := store.NewBreakerStore(backend, store.BreakerConfig{
		Name:             "message-store",
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, recorder)
	defer func() {
		if err := messageStore.Close(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to close message store")
		}
	}()
	logger.Info().Str("driver", cfg.Store.Driver).Msg("message store ready")

	// Participant directory, optionally cached in redis
	var participants store.ParticipantDirectory = messageStore
	if cfg.Redis.Enabled {
		cache, err := directory.NewRedisMembershipCache(directory.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Prefix)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to connect to redis, participant cache disabled")
		} else {
			defer cache.Close()
			participants = directory.NewCached(messageStore, cache, cfg.Redis.CacheTTL, recorder)
			logger.Info().Str("address", cfg.Redis.Address).Msg("participant cache enabled")
		}
	}

	// Initialize Kafka producer for lifecycle events
	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.CallTopic, cfg.Kafka.MessageTopic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, lifecycle events disabled")
		} else {
			defer producer.Close()
			publisher = kafka.NewPublisher(producer)
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Msg("connected to kafka")
		}
	}

	// Realtime core
	sessions := registry.New()
	rooms := registry.NewRooms()
	broadcaster := presence.NewBroadcaster(sessions, recorder)
	relay := typing.NewRelay(rooms, typing.Config{
		Interval: cfg.Typing.Interval,
		Burst:    cfg.Typing.Burst,
	}, recorder)

	callOpts := []signaling.Option{signaling.WithObserver(recorder)}
	engineOpts := []messaging.Option{messaging.WithRecorder(recorder)}
	if publisher != nil {
		callOpts = append(callOpts, signaling.WithObserver(publisher))
		engineOpts = append(engineOpts, messaging.WithObserver(publisher))
	}
	calls := signaling.NewCoordinator(sessions, signaling.Config{
		SingleCall:  cfg.Signaling.SingleCall,
		RingTimeout: cfg.Signaling.RingTimeout,
		ValidateSDP: cfg.Signaling.ValidateSDP,
	}, callOpts...)
	engine := messaging.NewEngine(messageStore, participants, rooms, messaging.Config{
		StoreTimeout:       cfg.Messaging.StoreTimeout,
		RequireParticipant: cfg.Messaging.RequireParticipant,
		MaxContentLength:   cfg.Messaging.MaxContentLength,
	}, engineOpts...)

	manager := lifecycle.NewManager(lifecycle.Components{
		Verifier:  verifier,
		Sessions:  sessions,
		Rooms:     rooms,
		Directory: participants,
		Presence:  broadcaster,
		Typing:    relay,
		Calls:     calls,
	})

	// Initialize hub
	wsHub := hub.NewHub(cfg.WebSocket, recorder)
	go wsHub.Run(ctx)

	// Initialize service
	realtimeSvc := service.NewRealtimeService(service.Dependencies{
		Deliverer: wsHub,
		Sessions:  sessions,
		Lifecycle: manager,
		Presence:  broadcaster,
		Messaging: engine,
		Typing:    relay,
		Calls:     calls,
		Recorder:  recorder,
	}, cfg.Signaling.SweepInterval)

	if err := realtimeSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start realtime service")
	}
	defer realtimeSvc.Stop()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger, "/health", "/metrics"))
	handler.NewHandler(realtimeSvc, ice.NewProvider(cfg.WebRTC), middleware.NewAuthMiddleware(verifier)).RegisterRoutes(r)

	// WebSocket upgrades bypass gin
	mux := http.NewServeMux()
	handler.NewWSHandler(wsHub, realtimeSvc).RegisterRoutes(mux, logger)
	mux.Handle("/", r)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("realtime-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down realtime-service")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()

	// Let the hub flush close frames to the hijacked connections.
	select {
	case <-wsHub.Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("hub did not stop before the shutdown timeout")
	}

	logger.Info().Msg("realtime-service stopped")
}

// openStore opens the configured message store backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "mongo":
		return store.NewMongoStore(ctx, cfg.Mongo)
	case "gorm", "":
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
