package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/config"
	"parley/internal/auth"
	"parley/internal/commands"
	"parley/internal/directory"
	"parley/internal/events"
	"parley/internal/handler"
	"parley/internal/metrics"
	"parley/internal/middleware"
	"parley/internal/outbox"
	"parley/internal/redis"
	"parley/internal/repository"
	"parley/internal/repository/memory"
	"parley/internal/server"
	"parley/internal/services"
	"parley/internal/storage"
	"parley/internal/websocket"
	"parley/pkg/database"
	"parley/pkg/logger"

	"go.uber.org/zap"
)

// backend is the storage side of the process: either postgres + redis or the
// in-memory development store.
type backend struct {
	store     repository.Store
	typing    repository.TypingRepository
	presence  repository.PresenceRepository
	cache     directory.ProfileCache
	limiter   services.SendLimiter
	publisher events.Publisher
	readiness map[string]server.HealthCheck
	start     func(ctx context.Context)
	close     func()
}

func main() {
	cfg := config.LoadConfig()
	log := logger.New(cfg.LogMode)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Errorf("parley stopped: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	m := metrics.New()
	bus := events.NewBus(log, events.WithObserver(m))
	defer bus.Close()

	var (
		be  *backend
		err error
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		be = memoryBackend(bus)
	default:
		be, err = postgresBackend(ctx, cfg, bus, log)
		if err != nil {
			return err
		}
	}
	defer be.close()

	uploads, err := attachmentStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	proc := outbox.NewProcessor(be.store.Outbox(), be.publisher, log, cfg.OutboxBatchSize, cfg.OutboxInterval, cfg.OutboxMaxRetries)
	proc.SetRecorder(m)

	dir := directory.NewResolver(be.store.Profiles(), be.cache, log)
	conversations := services.NewConversationService(be.store, dir, proc, nil, log)
	threads := services.NewThreadService(be.store, proc, nil)
	messages := services.NewMessageService(be.store, uploads, threads, proc, nil, services.MessageLimits{
		MaxAttachments: cfg.MaxAttachments,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, log)
	messages.SetRecorder(m)
	if be.limiter != nil {
		messages.SetLimiter(be.limiter)
	}
	reactions := services.NewReactionService(be.store, proc, nil)
	typing := services.NewTypingService(be.store, be.typing, be.publisher, dir, nil, cfg.TypingTimeout, log)
	presence := services.NewPresenceService(be.presence, be.publisher, dir, nil, cfg.PresenceWindow, log)
	chat := services.NewChatService(conversations, messages)

	cmdBus := commands.NewBus(commands.ActorProxy())
	messages.RegisterHandlers(cmdBus)
	reactions.RegisterHandlers(cmdBus)
	typing.RegisterHandlers(cmdBus)
	presence.RegisterHandlers(cmdBus)

	hub := websocket.NewHub(m, presence)
	socket := websocket.NewHandler(hub, bus, cmdBus, websocket.NewScopeAuthorizer(be.store), websocket.Config{
		FrameRPS:   cfg.SocketFrameRPS,
		FrameBurst: cfg.SocketFrameBurst,
	}, log)

	srv := server.New(cfg, log)
	srv.SetupRoutes(server.Dependencies{
		Handlers: &handler.Handlers{
			Conversations: handler.NewConversationHandler(conversations),
			Messages:      handler.NewMessageHandler(messages, threads, reactions, chat, cfg.MaxUploadBytes),
			Realtime:      handler.NewRealtimeHandler(typing, presence),
		},
		Socket:    socket,
		Verifier:  auth.NewTokenVerifier(cfg.JWTSecret),
		Metrics:   m.Handler(),
		Observer:  m,
		Limiter:   middleware.NewClientLimiter(50, 100, 10*time.Minute),
		Readiness: be.readiness,
	})

	be.start(ctx)
	go proc.Run(ctx)

	err = srv.Run(ctx)
	hub.CloseAll()
	return err
}

func memoryBackend(bus *events.Bus) *backend {
	return &backend{
		store:     memory.NewStore(),
		typing:    memory.NewTypingStore(),
		presence:  memory.NewPresenceStore(),
		publisher: bus,
		readiness: map[string]server.HealthCheck{},
		start:     func(context.Context) {},
		close:     func() {},
	}
}

// postgresBackend commits to postgres and fans events out through redis so
// every instance's bus sees every event.
func postgresBackend(ctx context.Context, cfg *config.Config, bus *events.Bus, log *logger.Logger) (*backend, error) {
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redis.Ping(ctx, rdb); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}

	relay := redis.NewRelay(rdb, bus, log)
	return &backend{
		store:    repository.NewPostgresStore(pool),
		typing:   redis.NewTypingStore(rdb, cfg.TypingTimeout),
		presence: redis.NewPresenceStore(rdb, cfg.PresenceWindow),
		cache:    redis.NewCacheStore(rdb, redis.DefaultCacheConfig()),
		limiter: redis.NewRateLimiter(rdb, redis.RateLimitConfig{
			MessageLimit:  cfg.MessageRateLimit,
			MessageWindow: cfg.MessageRateWindow,
		}),
		publisher: redis.NewPublisher(rdb, events.NewConversationChannelResolver()),
		readiness: map[string]server.HealthCheck{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return redis.Ping(ctx, rdb) },
		},
		start: func(ctx context.Context) {
			go func() {
				for ctx.Err() == nil {
					if err := relay.Run(ctx); err != nil {
						log.Logger.Warn("redis relay stopped, restarting", zap.Error(err))
						time.Sleep(time.Second)
					}
				}
			}()
		},
		close: func() {
			_ = rdb.Close()
			pool.Close()
		},
	}, nil
}

func attachmentStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.AttachmentStore, error) {
	if !cfg.S3Enabled() {
		log.Warnf("S3 not configured, attachments are kept in memory")
		return storage.NewMemoryStore("memory://attachments", cfg.ThumbnailBase), nil
	}
	return storage.NewClient(ctx, storage.S3Config{
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Endpoint:      cfg.S3Endpoint,
		PublicBase:    cfg.S3PublicBase,
		ThumbnailBase: cfg.ThumbnailBase,
	})
}
