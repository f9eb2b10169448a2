// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	candleadapters "indicator_backend/internal/feature/candles/adapters"
	"indicator_backend/internal/feature/indicator/usecase"
	"indicator_backend/internal/platform/externalapi/twelvedata"
	infrahttp "indicator_backend/internal/platform/http"
	"indicator_backend/internal/shared/ratelimiter"
)

const (
	MarketSourceDB         = "db"
	MarketSourceTwelveData = "twelvedata"
)

// MarketSource reads MARKET_SOURCE; the default is the candle table.
func MarketSource() string {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("MARKET_SOURCE"))); v != "" {
		return v
	}
	return MarketSourceDB
}

// NewMarket creates the MarketDataProvider selected by source.
func NewMarket(source string, db *gorm.DB) (usecase.MarketDataProvider, error) {
	switch source {
	case MarketSourceDB, "":
		return candleadapters.NewCandleRepository(db), nil
	case MarketSourceTwelveData:
		return NewTwelveDataMarket(), nil
	default:
		return nil, fmt.Errorf("unsupported MARKET_SOURCE %q", source)
	}
}

// NewTwelveDataMarket creates a fully configured TwelveDataMarket with HTTP client and rate limiter.
func NewTwelveDataMarket() *twelvedata.TwelveDataMarket {
	cfg := twelvedata.LoadConfig()
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	limiter := ratelimiter.NewRateLimiter(cfg.RequestsPerMinute, time.Minute)
	return twelvedata.NewTwelveDataMarket(cfg, httpClient, limiter)
}
