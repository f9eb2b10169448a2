// Package usecase orchestrates market data, indicator computation and
// indicator persistence.
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	candleentity "indicator_backend/internal/feature/candles/domain/entity"
	"indicator_backend/internal/feature/indicator/domain"
	"indicator_backend/internal/feature/indicator/domain/entity"
	"indicator_backend/internal/feature/indicator/domain/kind"
	"indicator_backend/internal/feature/indicator/domain/params"
)

const (
	// DefaultCandleLimit is the number of candles fetched for a recompute when the caller gives no limit.
	DefaultCandleLimit = 5000
	// DefaultSeriesCount is the number of stored values returned by GetSeries when count is not positive.
	DefaultSeriesCount = 100
	// DefaultRangeLimit caps GetRange results when limit is not positive.
	DefaultRangeLimit = 1000
)

var log = logrus.WithField("component", "indicator")

// MarketDataProvider supplies candles ordered by time ascending, one per timestamp.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type MarketDataProvider interface {
	Fetch(ctx context.Context, q candleentity.CandleQuery) ([]candleentity.Candle, error)
}

// IndicatorRepository persists indicator records under their natural key.
type IndicatorRepository interface {
	// Upsert inserts new keys and overwrites value/updated_at of existing ones.
	Upsert(ctx context.Context, records []entity.IndicatorRecord) error
	// QueryRange returns records inside [start, end], newest first.
	QueryRange(ctx context.Context, key entity.SeriesKey, start, end time.Time, limit int) ([]entity.IndicatorRecord, error)
	// QueryLatest returns the most recent count records, oldest first.
	QueryLatest(ctx context.Context, key entity.SeriesKey, count int) ([]entity.IndicatorRecord, error)
	// Find returns the record stored for one timestamp.
	Find(ctx context.Context, key entity.SeriesKey, ts time.Time) (*entity.IndicatorRecord, error)
	// PurgeSeries deletes every record of the series and reports how many were removed.
	PurgeSeries(ctx context.Context, key entity.SeriesKey) (int64, error)
}

// MetricsRecorder receives timing of the compute step. A nil recorder is allowed.
type MetricsRecorder interface {
	ObserveCompute(kind string, d time.Duration, points int)
}

// RecomputeRequest describes one recompute-and-store call.
type RecomputeRequest struct {
	Symbol    string
	Timeframe string
	Kind      string
	Params    params.Params
	Start     *time.Time
	End       *time.Time
	Limit     int
}

// IndicatorUsecase computes indicator series from candles and stores them.
type IndicatorUsecase struct {
	market  MarketDataProvider
	repo    IndicatorRepository
	metrics MetricsRecorder
}

// NewIndicatorUsecase creates a new IndicatorUsecase. metrics may be nil.
func NewIndicatorUsecase(market MarketDataProvider, repo IndicatorRepository, metrics MetricsRecorder) *IndicatorUsecase {
	return &IndicatorUsecase{market: market, repo: repo, metrics: metrics}
}

// RecomputeAndStore fetches candles, computes the series and upserts it.
// The returned series is the freshly computed result, not a re-read of the store.
func (u *IndicatorUsecase) RecomputeAndStore(ctx context.Context, req RecomputeRequest) ([]entity.Point, error) {
	k, key, err := resolve(req.Symbol, req.Timeframe, req.Kind, req.Params)
	if err != nil {
		return nil, err
	}
	if req.Start != nil && req.End != nil && req.Start.After(*req.End) {
		return nil, domain.NewInvalidParameter(domain.ReasonMalformed, "start %s is after end %s",
			req.Start.Format(time.RFC3339), req.End.Format(time.RFC3339))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultCandleLimit
	}
	candles, err := u.market.Fetch(ctx, candleentity.CandleQuery{
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Start:     req.Start,
		End:       req.End,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s/%s: %w", req.Symbol, req.Timeframe, err)
	}
	if len(candles) < req.Params.Period {
		return nil, &domain.InsufficientDataError{Required: req.Params.Period, Available: len(candles)}
	}

	series, err := u.compute(k, closes(candles), req.Params)
	if err != nil {
		return nil, err
	}

	records := make([]entity.IndicatorRecord, 0, len(series))
	for _, p := range series {
		records = append(records, entity.IndicatorRecord{
			Symbol:    key.Symbol,
			Timeframe: key.Timeframe,
			Timestamp: p.Timestamp,
			Kind:      key.Kind,
			ParamsID:  key.ParamsID,
			Value:     p.Value,
		})
	}
	if err := u.repo.Upsert(ctx, records); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"symbol":    key.Symbol,
		"timeframe": key.Timeframe,
		"kind":      key.Kind,
		"params":    key.ParamsID,
		"candles":   len(candles),
		"points":    len(series),
	}).Info("indicator series recomputed")
	return series, nil
}

// GetSeries returns the most recent count stored values in chronological order.
func (u *IndicatorUsecase) GetSeries(ctx context.Context, symbol, timeframe, kindName string, p params.Params, count int) ([]entity.Point, error) {
	_, key, err := resolve(symbol, timeframe, kindName, p)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = DefaultSeriesCount
	}

	records, err := u.repo.QueryLatest(ctx, key, count)
	if err != nil {
		return nil, err
	}
	return toPoints(records), nil
}

// GetRange returns stored values inside [start, end], newest first.
func (u *IndicatorUsecase) GetRange(ctx context.Context, symbol, timeframe, kindName string, p params.Params, start, end time.Time, limit int) ([]entity.Point, error) {
	_, key, err := resolve(symbol, timeframe, kindName, p)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, domain.NewInvalidParameter(domain.ReasonMalformed, "start %s is after end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if limit <= 0 {
		limit = DefaultRangeLimit
	}

	records, err := u.repo.QueryRange(ctx, key, start, end, limit)
	if err != nil {
		return nil, err
	}
	return toPoints(records), nil
}

// GetLatestValue computes the most recent value straight from the newest
// candles without touching the store. It returns nil, nil while fewer candles
// than the period exist.
func (u *IndicatorUsecase) GetLatestValue(ctx context.Context, symbol, timeframe, kindName string, p params.Params) (*entity.Point, error) {
	k, _, err := resolve(symbol, timeframe, kindName, p)
	if err != nil {
		return nil, err
	}

	candles, err := u.market.Fetch(ctx, candleentity.CandleQuery{
		Symbol:    symbol,
		Timeframe: timeframe,
		Limit:     p.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s/%s: %w", symbol, timeframe, err)
	}
	if len(candles) < p.Period {
		log.WithFields(logrus.Fields{
			"symbol":    symbol,
			"timeframe": timeframe,
			"required":  p.Period,
			"available": len(candles),
		}).Debug("not enough candles for latest value")
		return nil, nil
	}
	candles = candles[len(candles)-p.Period:]

	values := make([]float64, len(candles))
	for i, c := range candles {
		values[i] = c.Close
	}
	start := time.Now()
	v, err := k.ComputeSingle(values, p)
	if err != nil {
		return nil, err
	}
	if u.metrics != nil {
		u.metrics.ObserveCompute(k.Name, time.Since(start), 1)
	}
	return &entity.Point{Timestamp: candles[len(candles)-1].Time, Value: v}, nil
}

// PurgeSeries removes every stored value of the series, e.g. to force a full recomputation.
func (u *IndicatorUsecase) PurgeSeries(ctx context.Context, symbol, timeframe, kindName string, p params.Params) (int64, error) {
	_, key, err := resolve(symbol, timeframe, kindName, p)
	if err != nil {
		return 0, err
	}
	n, err := u.repo.PurgeSeries(ctx, key)
	if err != nil {
		return 0, err
	}
	log.WithFields(logrus.Fields{
		"symbol":    key.Symbol,
		"timeframe": key.Timeframe,
		"kind":      key.Kind,
		"params":    key.ParamsID,
		"deleted":   n,
	}).Info("indicator series purged")
	return n, nil
}

func (u *IndicatorUsecase) compute(k kind.Kind, prices []entity.Point, p params.Params) ([]entity.Point, error) {
	start := time.Now()
	series, err := k.ComputeSeries(prices, p)
	if err != nil {
		return nil, err
	}
	if u.metrics != nil {
		u.metrics.ObserveCompute(k.Name, time.Since(start), len(series))
	}
	return series, nil
}

// resolve validates the request before any I/O and derives the series key.
func resolve(symbol, timeframe, kindName string, p params.Params) (kind.Kind, entity.SeriesKey, error) {
	if strings.TrimSpace(symbol) == "" {
		return kind.Kind{}, entity.SeriesKey{}, domain.NewInvalidParameter(domain.ReasonMalformed, "symbol is required")
	}
	if strings.TrimSpace(timeframe) == "" {
		return kind.Kind{}, entity.SeriesKey{}, domain.NewInvalidParameter(domain.ReasonMalformed, "timeframe is required")
	}
	k, err := kind.Lookup(kindName)
	if err != nil {
		return kind.Kind{}, entity.SeriesKey{}, err
	}
	id, err := k.Identity(p)
	if err != nil {
		return kind.Kind{}, entity.SeriesKey{}, err
	}
	return k, entity.SeriesKey{Symbol: symbol, Timeframe: timeframe, Kind: k.Name, ParamsID: id}, nil
}

func closes(candles []candleentity.Candle) []entity.Point {
	out := make([]entity.Point, len(candles))
	for i, c := range candles {
		out[i] = entity.Point{Timestamp: c.Time, Value: c.Close}
	}
	return out
}

func toPoints(records []entity.IndicatorRecord) []entity.Point {
	out := make([]entity.Point, 0, len(records))
	for _, r := range records {
		out = append(out, r.Point())
	}
	return out
}
