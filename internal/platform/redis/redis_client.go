// Package redis connects the optional Redis cache.
package redis

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration // lifetime of cached query results
}

// Enabled reports whether a Redis host is configured. Without one the cache is bypassed.
func (c Config) Enabled() bool {
	return c.Host != ""
}

// Addr returns host:port, defaulting the port to 6379.
func (c Config) Addr() string {
	port := c.Port
	if port == "" {
		port = "6379"
	}
	return c.Host + ":" + port
}

// LoadConfig は環境変数からRedis設定を読み込みます。
func LoadConfig() Config {
	cfg := Config{
		Host:     os.Getenv("REDIS_HOST"),
		Port:     os.Getenv("REDIS_PORT"),
		Password: os.Getenv("REDIS_PASSWORD"),
		TTL:      5 * time.Minute,
	}
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && v >= 0 {
		cfg.DB = v
	}
	if d, err := time.ParseDuration(os.Getenv("CACHE_TTL")); err == nil && d > 0 {
		cfg.TTL = d
	}
	return cfg
}

func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 接続確認
	if err := rdb.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).WithField("address", cfg.Addr()).Error("Redis connection failed")
		_ = rdb.Close()
		return nil, err
	}

	logrus.WithField("address", cfg.Addr()).Info("Redis connection successful")
	return rdb, nil
}
