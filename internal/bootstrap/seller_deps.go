package bootstrap

import (
	"context"
	"time"

	"seller_server/adapter/in/worker"
	"seller_server/adapter/out/messaging"
	"seller_server/adapter/out/mongodb"
	"seller_server/adapter/out/persistence"
	"seller_server/adapter/out/provider"
	"seller_server/config"
	"seller_server/core/domain"
	"seller_server/core/port/in"
	"seller_server/core/port/out"
	"seller_server/core/service/assist"
	"seller_server/core/service/classification"
	"seller_server/core/service/message"
	"seller_server/infra/database"
	"seller_server/pkg/cache"
	"seller_server/pkg/logger"
	"seller_server/pkg/ratelimit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies wires every adapter and service once and hands them to the
// api and worker entrypoints.
type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	MessageRepo out.MessageRepository
	UserRepo    out.UserRepository
	RawStore    out.RawPayloadStore

	// Marketplace
	Marketplace out.MarketplacePort

	// Messaging
	Producer  out.JobProducer
	Scheduler *worker.DelayScheduler

	// Assist
	Drafter *assist.Drafter

	// Services
	Classifier     *classification.Classifier
	MessageService in.MessageService
	AutoResponder  *message.AutoResponder

	// HTTP helpers
	SyncDebouncer *ratelimit.Debouncer
	StatsCache    *cache.RedisCache
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	// Database (pgxpool, health checks)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the repository adapters)
	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		logger.Error("sqlx connection failed: %v", err)
		db.Close()
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	deps.MessageRepo = persistence.NewMessageAdapter(sqlDB)
	deps.UserRepo = persistence.NewUserAdapter(sqlDB)

	// Redis (queue, cache, debounce)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })

			deps.Producer = messaging.NewRedisProducer(redisClient)
			deps.StatsCache = cache.NewRedisCache(redisClient)
			deps.SyncDebouncer = ratelimit.NewDebouncer(redisClient, cfg.SyncDebounce)
		}
	}
	if deps.Redis == nil {
		logger.Warn("Redis not available, background jobs and stats caching are disabled")
	}

	// MongoDB (raw payload archive)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			rawStore := mongodb.NewRawPayloadAdapter(mongoClient.Database(cfg.MongoDBName), 0)
			if err := rawStore.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure MongoDB indexes: %v", err)
			}
			deps.RawStore = rawStore
		}
	}

	// eBay Trading API
	deps.Marketplace = provider.NewEbayAdapter(&provider.EbayConfig{
		TradingURL:         cfg.EbayTradingURL,
		AuthURL:            cfg.EbayAuthURL,
		SiteID:             cfg.EbaySiteID,
		CompatLevel:        cfg.EbayCompatLevel,
		DefaultEnvironment: domain.MarketplaceEnvironment(cfg.EbayEnvironment),
	})

	// Auto-response scheduler rides on the job producer; without Redis
	// the pipeline still ingests, it just never auto-replies.
	var scheduler out.ResponseScheduler
	if deps.Producer != nil {
		deps.Scheduler = worker.NewDelayScheduler(deps.Producer, cfg.MaxResponseDelay)
		scheduler = deps.Scheduler
		cleanups = append(cleanups, func() { deps.Scheduler.Stop() })
	}

	// Reply drafter (disabled without an API key)
	deps.Drafter = assist.NewDrafter(assist.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	deps.Classifier = classification.NewClassifier()

	deps.MessageService = message.NewService(
		deps.Marketplace,
		deps.MessageRepo,
		deps.UserRepo,
		deps.RawStore,
		scheduler,
		deps.Drafter,
		deps.Classifier,
		message.Config{
			FetchWindowDays: cfg.FetchWindowDays,
			PageSize:        cfg.FetchPageSize,
		},
	)

	deps.AutoResponder = message.NewAutoResponder(
		deps.Marketplace,
		deps.MessageRepo,
		deps.UserRepo,
		deps.Classifier,
	)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.Ping(ctx); err != nil {
		return err
	}

	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	return nil
}
