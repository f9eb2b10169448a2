package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"indicator_backend/internal/app/di"
	"indicator_backend/internal/app/router"
	indicatorhandler "indicator_backend/internal/feature/indicator/transport/handler"
	infradb "indicator_backend/internal/platform/db"
	"indicator_backend/internal/platform/http/handler"
	"indicator_backend/internal/platform/logger"
	"indicator_backend/internal/platform/metrics"
	infraredis "indicator_backend/internal/platform/redis"
)

func main() {
	// .envを読み込む
	if err := godotenv.Load(".env"); err != nil {
		logrus.Info(".env not found; using system environment variables")
	}
	logger.Setup(logger.LoadConfig(), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := infradb.OpenDB(infradb.LoadConfigFromEnv())
	if err != nil {
		logrus.WithError(err).Fatal("failed to open database")
	}

	// Redis
	redisCfg := infraredis.LoadConfig()
	var rdb *redisv9.Client
	if redisCfg.Enabled() {
		if tmp, err := infraredis.NewRedisClient(ctx, redisCfg); err != nil {
			logrus.WithError(err).Warn("Redis unavailable. Running without cache.")
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					logrus.WithError(err).Error("failed to close Redis client")
				}
			}()
		}
	}

	m := metrics.NewMetrics(nil)

	// Market data / Repository
	market, err := di.NewMarket(di.MarketSource(), db)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create market data provider")
	}
	storeCfg := di.LoadStoreConfig()
	storeCfg.CacheTTL = redisCfg.TTL
	repo := di.NewIndicatorRepository(db, rdb, storeCfg, m)

	// Usecase
	indicatorUC := di.NewIndicatorUsecase(market, repo, m)

	// Handler
	indicatorH := indicatorhandler.NewIndicatorHandler(indicatorUC)
	checks := map[string]handler.Check{
		"db": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	healthH := handler.NewHealthHandler(2*time.Second, checks)

	// ルータ生成
	r := router.NewRouter(indicatorH, healthH, m.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("indicator server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
	logrus.Info("server stopped")
}
