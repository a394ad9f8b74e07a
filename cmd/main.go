package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/minha-cantina/config"
	"github.com/oksasatya/minha-cantina/internal/application"
	"github.com/oksasatya/minha-cantina/internal/container"
	repo "github.com/oksasatya/minha-cantina/internal/domain/repository"
	"github.com/oksasatya/minha-cantina/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/minha-cantina/internal/infrastructure/postgres"
	"github.com/oksasatya/minha-cantina/internal/interface/middleware"
	"github.com/oksasatya/minha-cantina/internal/router"
	"github.com/oksasatya/minha-cantina/pkg/helpers"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	gw, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open store")
	}
	defer closeStore()

	rdb := openRedis(ctx, cfg, logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	gcsClient := openGCS(ctx, cfg, logger)
	if gcsClient != nil {
		defer func() { _ = gcsClient.Close() }()
	}

	esClient := openES(cfg, logger)
	if esClient != nil {
		prepareSearch(ctx, application.NewCatalogService(gw, nil, logger, esClient, cfg.ESProductsIndex, nil, ""), cfg, logger)
	}

	var pub *helpers.RabbitPublisher
	if cfg.MailSendEnabled && cfg.MailNotifyTo != "" {
		pub, err = helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable; signup notifications disabled")
			pub = nil
		} else {
			defer pub.Close()
		}
	}

	// JWT
	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetGateway(gw)
	container.SetRedis(rdb)
	container.SetGCS(gcsClient)
	container.SetES(esClient)
	container.SetRabbitPub(pub)
	container.SetJWT(jwtManager)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOriginFunc = func(string) bool { return cfg.Env == "development" }
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
		return
	}
	logger.Info("server exited properly")
}

// openStore returns the persistence gateway selected by STORAGE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (repo.Gateway, func(), error) {
	if cfg.UseMemoryStore() {
		logger.Warn("STORAGE_DRIVER=memory; data is lost on restart")
		return memory.NewGateway(), func() {}, nil
	}

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), poolOptions(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := runMigrations(cfg, logger); err != nil {
		pool.Close()
		return nil, nil, err
	}
	db := pginfra.OpenDB(pool)
	return pginfra.NewGateway(db), func() {
		_ = db.Close()
		pool.Close()
	}, nil
}

func poolOptions(cfg *config.Config) pginfra.PoolOptions {
	return pginfra.PoolOptions{
		AppName:     cfg.AppName,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		MaxConnLife: cfg.DBMaxConnLife,
	}
}

func runMigrations(cfg *config.Config, logger *logrus.Logger) error {
	logger.WithField("dir", cfg.MigrationsDir).Info("running migrations...")
	applied, err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if !applied {
		logger.Info("no migrations to run")
	}
	return nil
}

func openRedis(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Info("redis disabled; sessions are token-only and the category cache is off")
		return nil
	}
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(c).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis ping failed; continuing")
	}
	return rdb
}

func openGCS(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *storage.Client {
	if cfg.GCSBucket == "" {
		return nil
	}
	client, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
	if err != nil {
		logger.WithError(err).Warn("gcs unavailable; product image uploads disabled")
		return nil
	}
	return client
}

func openES(cfg *config.Config, logger *logrus.Logger) *elasticsearch.Client {
	addrs := cfg.ESAddrs()
	if len(addrs) == 0 {
		return nil
	}
	es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		logger.WithError(err).Warn("elasticsearch unavailable; search falls back to the store")
		return nil
	}
	return es
}

// prepareSearch makes sure the products index exists and, when it was just
// created or ES_REINDEX_ON_START is set, fills it from the store.
func prepareSearch(ctx context.Context, catalog *application.CatalogService, cfg *config.Config, logger *logrus.Logger) {
	log := logger.WithField("index", cfg.ESProductsIndex)
	created, err := catalog.EnsureIndex(ctx)
	if err != nil {
		log.WithError(err).Warn("ensure products index failed")
		return
	}
	if !created && !cfg.ESReindexOnStart {
		return
	}
	n, err := catalog.ReindexProducts(ctx)
	if err != nil {
		log.WithError(err).WithField("indexed", n).Warn("products reindex incomplete")
		return
	}
	log.WithField("indexed", n).Info("products reindexed")
}
