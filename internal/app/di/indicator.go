package di

import (
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	indicatoradapters "indicator_backend/internal/feature/indicator/adapters"
	"indicator_backend/internal/feature/indicator/usecase"
	"indicator_backend/internal/platform/cache"
	"indicator_backend/internal/platform/metrics"
)

const defaultQueryTimeout = 5 * time.Second

// StoreConfig tunes the indicator store.
type StoreConfig struct {
	QueryTimeout time.Duration // STORE_QUERY_TIMEOUT, 0 disables
	ChunkSize    int           // STORE_CHUNK_SIZE, <= 0 keeps the adapter default
	CacheTTL     time.Duration
}

// LoadStoreConfig は環境変数からストア設定を読み込みます。
func LoadStoreConfig() StoreConfig {
	cfg := StoreConfig{QueryTimeout: defaultQueryTimeout}
	if v := os.Getenv("STORE_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.QueryTimeout = d
		}
	}
	if n, err := strconv.Atoi(os.Getenv("STORE_CHUNK_SIZE")); err == nil {
		cfg.ChunkSize = n
	}
	return cfg
}

// NewIndicatorRepository builds the gorm store and, when rdb is not nil,
// wraps it with the Redis cache. m may be nil.
func NewIndicatorRepository(db *gorm.DB, rdb *redis.Client, cfg StoreConfig, m *metrics.Metrics) usecase.IndicatorRepository {
	opts := []indicatoradapters.Option{
		indicatoradapters.WithQueryTimeout(cfg.QueryTimeout),
		indicatoradapters.WithChunkSize(cfg.ChunkSize),
	}
	if m != nil {
		opts = append(opts, indicatoradapters.WithObserver(m))
	}
	repo := indicatoradapters.NewIndicatorRepository(db, opts...)

	if rdb == nil {
		return repo
	}
	return cache.NewCachingIndicatorRepository(rdb, cfg.CacheTTL, repo, "indicators")
}

// NewIndicatorUsecase wires the usecase; m may be nil.
func NewIndicatorUsecase(market usecase.MarketDataProvider, repo usecase.IndicatorRepository, m *metrics.Metrics) *usecase.IndicatorUsecase {
	if m == nil {
		return usecase.NewIndicatorUsecase(market, repo, nil)
	}
	return usecase.NewIndicatorUsecase(market, repo, m)
}
