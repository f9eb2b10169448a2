package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"indicator_backend/internal/feature/candles/domain/entity"
	indicatorusecase "indicator_backend/internal/feature/indicator/usecase"
	"indicator_backend/internal/platform/externalapi/twelvedata/dto"
)

// maxOutputSize is the largest outputsize time_series accepts.
const maxOutputSize = 5000

const (
	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// intervals maps timeframe tags to Twelve Data interval names. Unknown tags pass through.
var intervals = map[string]string{
	"1m":  "1min",
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"45m": "45min",
	"1h":  "1h",
	"2h":  "2h",
	"4h":  "4h",
	"1d":  "1day",
	"1w":  "1week",
	"1M":  "1month",
}

// TwelveDataMarket はTwelve Data外部APIからローソク足を取得するMarketDataProvider実装です。
type TwelveDataMarket struct {
	cfg     Config
	client  *http.Client
	limiter indicatorusecase.Limiter
}

var _ indicatorusecase.MarketDataProvider = (*TwelveDataMarket)(nil)

// NewTwelveDataMarket creates the provider. limiter may be nil.
func NewTwelveDataMarket(cfg Config, client *http.Client, limiter indicatorusecase.Limiter) *TwelveDataMarket {
	return &TwelveDataMarket{cfg: cfg, client: client, limiter: limiter}
}

// Fetch はTwelve Data APIから時系列データを取得し、古い順・重複なしのローソク足として返します。
func (t *TwelveDataMarket) Fetch(ctx context.Context, q entity.CandleQuery) ([]entity.Candle, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	outputsize := q.Limit
	if outputsize <= 0 || outputsize > maxOutputSize {
		outputsize = maxOutputSize
	}

	v := url.Values{}
	v.Set("symbol", q.Symbol)
	v.Set("interval", Interval(q.Timeframe))
	v.Set("outputsize", strconv.Itoa(outputsize))
	v.Set("timezone", "UTC")
	v.Set("apikey", t.cfg.TwelveDataAPIKey)
	if q.Start != nil {
		v.Set("start_date", q.Start.UTC().Format(layoutDateTime))
	}
	if q.End != nil {
		v.Set("end_date", q.End.UTC().Format(layoutDateTime))
	}

	u := fmt.Sprintf("%s/time_series?%s", strings.TrimRight(t.cfg.BaseURL, "/"), v.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close response body")
		}
	}()

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("twelvedata http %d", res.StatusCode)
	}

	var body dto.TimeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("twelvedata: decode response: %w", err)
	}
	if body.Status == "error" {
		// 400: 指定期間にデータなし
		if body.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(body.Message), "no data") {
			return []entity.Candle{}, nil
		}
		return nil, fmt.Errorf("twelvedata: %s", body.Message)
	}

	candles := make([]entity.Candle, 0, len(body.Values))
	for _, val := range body.Values {
		c, err := toCandle(val)
		if err != nil {
			return nil, err
		}
		c.Symbol = q.Symbol
		c.Timeframe = q.Timeframe
		candles = append(candles, c)
	}
	return ascendingUnique(candles), nil
}

// Interval converts a timeframe tag such as "5m" into the Twelve Data interval name.
func Interval(timeframe string) string {
	if iv, ok := intervals[timeframe]; ok {
		return iv
	}
	return timeframe
}

func toCandle(v dto.TimeSeriesValue) (entity.Candle, error) {
	tm, err := time.ParseInLocation(layoutDateTime, v.Datetime, time.UTC)
	if err != nil {
		tm, err = time.ParseInLocation(layoutDate, v.Datetime, time.UTC)
		if err != nil {
			return entity.Candle{}, fmt.Errorf("parse time %q: %w", v.Datetime, err)
		}
	}

	var c entity.Candle
	c.Time = tm
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", v.Open, &c.Open},
		{"high", v.High, &c.High},
		{"low", v.Low, &c.Low},
		{"close", v.Close, &c.Close},
	}
	for _, f := range fields {
		x, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return entity.Candle{}, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = x
	}
	if v.Volume != "" {
		vol, err := strconv.ParseFloat(v.Volume, 64)
		if err != nil {
			return entity.Candle{}, fmt.Errorf("parse volume %q: %w", v.Volume, err)
		}
		c.Volume = vol
	}
	return c, nil
}

// ascendingUnique sorts oldest first and keeps the first candle of each timestamp.
func ascendingUnique(candles []entity.Candle) []entity.Candle {
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	out := candles[:0]
	for i, c := range candles {
		if i > 0 && c.Time.Equal(out[len(out)-1].Time) {
			continue
		}
		out = append(out, c)
	}
	return out
}
