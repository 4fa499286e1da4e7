package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/chinmaysolanki/dost-ai/config"
	"github.com/chinmaysolanki/dost-ai/internal/api/handlers"
	"github.com/chinmaysolanki/dost-ai/internal/api/middleware"
	"github.com/chinmaysolanki/dost-ai/internal/api/routes"
	"github.com/chinmaysolanki/dost-ai/internal/budget"
	"github.com/chinmaysolanki/dost-ai/internal/cache"
	"github.com/chinmaysolanki/dost-ai/internal/contextstore"
	"github.com/chinmaysolanki/dost-ai/internal/gateway"
	"github.com/chinmaysolanki/dost-ai/internal/hub"
	"github.com/chinmaysolanki/dost-ai/internal/learning"
	"github.com/chinmaysolanki/dost-ai/internal/logger"
	"github.com/chinmaysolanki/dost-ai/internal/models"
	"github.com/chinmaysolanki/dost-ai/internal/orchestrator"
	"github.com/chinmaysolanki/dost-ai/internal/providers/llm"
	mongorepo "github.com/chinmaysolanki/dost-ai/internal/repositories/mongo"
	pgrepo "github.com/chinmaysolanki/dost-ai/internal/repositories/postgres"
	"github.com/chinmaysolanki/dost-ai/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New()

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.PostgresDB.AutoMigrate(
		&models.User{},
		&models.Turn{},
		&models.PersonalizationRecord{},
	); err != nil {
		log.WithError(err).Fatal("PostgreSQL migration error")
	}
	log.Info("PostgreSQL connected")

	// Init Redis. Budget counters fall back to process memory without it.
	var tracker budget.Tracker
	var sharedCache cache.Cache
	limits := budget.Limits{DailyTokens: cfg.BudgetDailyTokens, DailyRequests: cfg.BudgetDailyRequests}
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Warn("Redis unavailable, using in-memory budget tracking")
		tracker = budget.NewMemory(limits)
	} else {
		log.Info("Redis connected")
		tracker = budget.NewRedis(config.RedisClient, limits)
		sharedCache = cache.NewRedisCache(config.RedisClient)
	}

	// Init MongoDB. Archiving is best-effort; skip it when Mongo is absent.
	var archiveRepo mongorepo.SessionArchiveRepository
	if err := config.InitMongo(); err != nil {
		log.WithError(err).Warn("MongoDB unavailable, session archiving disabled")
	} else {
		log.Info("MongoDB connected")
		archiveRepo = mongorepo.NewSessionArchiveRepo(config.MongoDatabase())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := archiveRepo.EnsureIndexes(ctx); err != nil {
			log.WithError(err).Warn("failed to ensure archive indexes")
		}
		cancel()
	}

	userRepo := pgrepo.NewUserRepo(config.PostgresDB)
	turnRepo := pgrepo.NewTurnRepo(config.PostgresDB)
	personRepo := pgrepo.NewPersonalizationRepo(config.PostgresDB)

	// Providers: wire whichever upstreams this deployment has credentials for.
	providers := make(map[string]llm.Provider)
	if cfg.OpenAIKey != "" {
		providers["openai"] = llm.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL)
		log.Info("OpenAI provider configured")
	}
	if cfg.VertexProject != "" {
		vp, err := llm.NewVertexGemini(context.Background(), cfg.VertexProject, cfg.VertexRegion)
		if err != nil {
			log.WithError(err).Warn("Vertex provider init failed")
		} else {
			providers["vertex"] = vp
			log.Info("Vertex provider configured")
		}
	}
	if len(providers) == 0 {
		log.Warn("no completion providers configured, all chats will be degraded")
	}

	catalog := gateway.DefaultCatalog(cfg.DefaultModel)
	gw := gateway.New(catalog, providers, tracker, logger.WithComponent(log, "gateway"),
		gateway.WithTimeout(cfg.GatewayTimeout),
		gateway.WithRetries(cfg.GatewayRetries),
	)

	store := contextstore.New(cfg.ContextWindowSize, cfg.SessionIdleTimeout)
	liveHub := hub.New(logger.WithComponent(log, "hub"))

	engineOpts := []learning.Option{learning.WithRepository(personRepo)}
	if sharedCache != nil {
		engineOpts = append(engineOpts, learning.WithCache(sharedCache))
	}
	engine := learning.New(cfg.DefaultModel, logger.WithComponent(log, "learning"), engineOpts...)

	orch := orchestrator.New(store, gw, liveHub, engine, turnRepo, userRepo, logger.WithComponent(log, "orchestrator"))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := orchestrator.NewSweeper(store, archiveRepo, cfg.SessionSweepEvery, logger.WithComponent(log, "sweeper"))
	go sweeper.Run(rootCtx)

	userSvc := services.NewUserService(userRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		JWTSecret:    cfg.JWTSecret,
		Chat:         handlers.NewChatHandler(orch),
		User:         handlers.NewUserHandler(userSvc, tracker, cfg.JWTSecret),
		Conversation: handlers.NewConversationHandler(turnRepo, archiveRepo),
		Status:       handlers.NewStatusHandler(orch, liveHub, engine, catalog, turnRepo, userRepo),
		WS:           handlers.NewWSHandler(liveHub),
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}

	liveHub.Close()
	engine.Close()
	for _, p := range providers {
		_ = p.Close()
	}
	if config.MongoClient != nil {
		_ = config.MongoClient.Disconnect(shutdownCtx)
	}

	log.Info("stopped")
	os.Exit(0)
}
