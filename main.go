package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/openmark/openmark/handlers"
	"github.com/openmark/openmark/internal/authority"
	"github.com/openmark/openmark/internal/config"
	"github.com/openmark/openmark/internal/database"
	"github.com/openmark/openmark/internal/documents"
	"github.com/openmark/openmark/internal/plugin"
	"github.com/openmark/openmark/internal/plugin/builtin"
	"github.com/openmark/openmark/pkg/logger"
	"github.com/openmark/openmark/pkg/metrics"
	"github.com/openmark/openmark/pkg/middleware"
)

var startTime = time.Now()

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init("info")
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	// plugin registry: built-ins only; operator builds may append their own
	// descriptor sets here
	registry := plugin.NewRegistry()
	registry.Discover(builtin.Descriptors())

	mgr, err := plugin.NewManager(registry, plugin.ManagerConfig{
		Auth:        plugin.Ref{Name: cfg.Plugins.Auth.Type, Config: cfg.Plugins.Auth.Config},
		Source:      plugin.Ref{Name: cfg.Plugins.Source.Type, Config: cfg.Plugins.Source.Config},
		Annotations: plugin.Ref{Name: cfg.Plugins.Annotations.Type, Config: cfg.Plugins.Annotations.Config},
	})
	if err != nil {
		logger.Fatalf("failed to construct plugins: %v", err)
	}
	defer mgr.Close()

	ctx := context.Background()

	// revocation store backing logout
	var redisClient *redis.Client
	var revocations authority.RevocationStore
	switch cfg.Revocation.Backend {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
		}
		revocations = authority.NewRedisRevocations(redisClient)
		logger.Infof("revocation store: redis (%s)", cfg.Redis.Addr)
	case "mongodb":
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			logger.Fatalf("failed to connect to MongoDB: %v", err)
		}
		defer func() { _ = client.Disconnect(ctx) }()
		store := authority.NewMongoRevocations(
			client.Database(cfg.MongoDB.Database).Collection(cfg.Revocation.MongoCollection))
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.Fatalf("failed to create revocation indexes: %v", err)
		}
		revocations = store
		logger.Infof("revocation store: mongodb (%s/%s)", cfg.MongoDB.Database, cfg.Revocation.MongoCollection)
	default:
		revocations = authority.NewMemoryRevocations()
		logger.Infof("revocation store: memory (single-instance only)")
	}

	auth := authority.New(mgr.Auth(), revocations, authority.Options{
		Secret:        []byte(cfg.JWT.Secret),
		AuthTokenTTL:  cfg.JWT.AuthTokenTTL,
		CacheDuration: cfg.Cache.Duration,
	})
	auth.StartPruning(cfg.Cache.CleanInterval)
	defer auth.Stop()

	// temp-document cache + background sweeper
	docs, err := documents.NewService(mgr.Source(), cfg.Cache.Directory, cfg.Cache.Duration)
	if err != nil {
		logger.Fatalf("failed to set up document cache: %v", err)
	}
	cleaner := documents.NewCleaner(docs, cfg.Cache.CleanInterval)
	cleaner.Start()
	defer cleaner.Stop()

	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, time.Second))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the revocation backend answers
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{"plugins": true}
		ready := true
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				deps["redis"] = false
				ready = false
			} else {
				deps["redis"] = true
			}
		}
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.NewAPIHandler(auth, docs, mgr.Annotations(), registry).Register(r)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting document gateway on %s (auth=%s source=%s annotations=%s)",
		addr, cfg.Plugins.Auth.Type, cfg.Plugins.Source.Type, cfg.Plugins.Annotations.Type)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server failed: %v", err)
	}
}
