package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indicator_backend/internal/feature/indicator/domain"
	"indicator_backend/internal/feature/indicator/domain/entity"
	"indicator_backend/internal/feature/indicator/domain/params"
	"indicator_backend/internal/feature/indicator/transport/handler"
	"indicator_backend/internal/feature/indicator/usecase"
)

// mockIndicatorUsecase はIndicatorUsecaseインターフェースのモック実装です。
type mockIndicatorUsecase struct {
	RecomputeFunc func(ctx context.Context, req usecase.RecomputeRequest) ([]entity.Point, error)
	SeriesFunc    func(ctx context.Context, symbol, timeframe, kind string, p params.Params, count int) ([]entity.Point, error)
	RangeFunc     func(ctx context.Context, symbol, timeframe, kind string, p params.Params, start, end time.Time, limit int) ([]entity.Point, error)
	LatestFunc    func(ctx context.Context, symbol, timeframe, kind string, p params.Params) (*entity.Point, error)
	PurgeFunc     func(ctx context.Context, symbol, timeframe, kind string, p params.Params) (int64, error)
}

func (m *mockIndicatorUsecase) RecomputeAndStore(ctx context.Context, req usecase.RecomputeRequest) ([]entity.Point, error) {
	return m.RecomputeFunc(ctx, req)
}

func (m *mockIndicatorUsecase) GetSeries(ctx context.Context, symbol, timeframe, kind string, p params.Params, count int) ([]entity.Point, error) {
	return m.SeriesFunc(ctx, symbol, timeframe, kind, p, count)
}

func (m *mockIndicatorUsecase) GetRange(ctx context.Context, symbol, timeframe, kind string, p params.Params, start, end time.Time, limit int) ([]entity.Point, error) {
	return m.RangeFunc(ctx, symbol, timeframe, kind, p, start, end, limit)
}

func (m *mockIndicatorUsecase) GetLatestValue(ctx context.Context, symbol, timeframe, kind string, p params.Params) (*entity.Point, error) {
	return m.LatestFunc(ctx, symbol, timeframe, kind, p)
}

func (m *mockIndicatorUsecase) PurgeSeries(ctx context.Context, symbol, timeframe, kind string, p params.Params) (int64, error) {
	return m.PurgeFunc(ctx, symbol, timeframe, kind, p)
}

func setupRouter(uc handler.IndicatorUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewIndicatorHandler(uc)
	r := gin.New()
	r.POST("/indicators/:kind/:symbol/recompute", h.Recompute)
	r.GET("/indicators/:kind/:symbol", h.GetSeries)
	r.GET("/indicators/:kind/:symbol/range", h.GetRange)
	r.GET("/indicators/:kind/:symbol/latest", h.GetLatest)
	r.DELETE("/indicators/:kind/:symbol", h.Purge)
	return r
}

func serve(r *gin.Engine, method, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, url, nil))
	return w
}

var (
	t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

// TestIndicatorHandler_GetSeries はGetSeriesのHTTPリクエスト/レスポンス処理をテストします。
func TestIndicatorHandler_GetSeries(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		mockSeries     func(ctx context.Context, symbol, timeframe, kind string, p params.Params, count int) ([]entity.Point, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success: period and count",
			url:  "/indicators/sma/7203.T?timeframe=1h&period=3&count=2",
			mockSeries: func(ctx context.Context, symbol, timeframe, kind string, p params.Params, count int) ([]entity.Point, error) {
				assert.Equal(t, "7203.T", symbol)
				assert.Equal(t, "1h", timeframe)
				assert.Equal(t, "sma", kind)
				assert.Equal(t, params.Params{Period: 3}, p)
				assert.Equal(t, 2, count)
				return []entity.Point{{Timestamp: t0, Value: 1.5}, {Timestamp: t1, Value: 2.5}}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"symbol":"7203.T","timeframe":"1h","kind":"SMA","params":"{\"period\":3}","count":2,
				"data":[{"time":"2025-01-01T00:00:00Z","value":1.5},{"time":"2025-01-01T01:00:00Z","value":2.5}]}`,
		},
		{
			name: "success: raw params identity and default count",
			url:  "/indicators/SMA/7203.T?timeframe=1h&params=%7B%20%22period%22%3A%2020%20%7D",
			mockSeries: func(ctx context.Context, symbol, timeframe, kind string, p params.Params, count int) ([]entity.Point, error) {
				assert.Equal(t, params.Params{Period: 20}, p)
				assert.Equal(t, 0, count)
				return []entity.Point{}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"symbol":"7203.T","timeframe":"1h","kind":"SMA","params":"{\"period\":20}","count":0,"data":[]}`,
		},
		{
			name:           "error: missing period",
			url:            "/indicators/SMA/7203.T?timeframe=1h",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error: non-integer period",
			url:            "/indicators/SMA/7203.T?timeframe=1h&period=2.5",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error: period not a number",
			url:            "/indicators/SMA/7203.T?timeframe=1h&period=abc",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error: malformed params",
			url:            "/indicators/SMA/7203.T?timeframe=1h&params=%7Bperiod%7D",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error: count not a number",
			url:            "/indicators/SMA/7203.T?timeframe=1h&period=3&count=many",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "error: store unavailable",
			url:  "/indicators/SMA/7203.T?timeframe=1h&period=3",
			mockSeries: func(ctx context.Context, symbol, timeframe, kind string, p params.Params, count int) ([]entity.Point, error) {
				return nil, &domain.StoreUnavailableError{Op: "query latest", Err: errors.New("i/o timeout")}
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"error":"indicator store unavailable: query latest: i/o timeout"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			r := setupRouter(&mockIndicatorUsecase{
				SeriesFunc: func(ctx context.Context, symbol, timeframe, kind string, p params.Params, count int) ([]entity.Point, error) {
					called = true
					require.NotNil(t, tt.mockSeries, "usecase must not be called")
					return tt.mockSeries(ctx, symbol, timeframe, kind, p, count)
				},
			})

			w := serve(r, http.MethodGet, tt.url)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
			assert.Equal(t, tt.mockSeries != nil, called)
		})
	}
}

func TestIndicatorHandler_ErrorBody(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "invalid parameter carries reason",
			err:            domain.NewInvalidParameter(domain.ReasonUnknownKind, "unknown indicator kind %q", "EMA"),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid indicator parameter: UnknownKind: unknown indicator kind \"EMA\"","reason":"UnknownKind"}`,
		},
		{
			name:           "insufficient data carries counts",
			err:            &domain.InsufficientDataError{Required: 20, Available: 4},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"error":"insufficient data: need 20 points, got 4","required":20,"available":4}`,
		},
		{
			name:           "provider failure",
			err:            errors.New("fetch candles 7203.T/1h: twelvedata http 500"),
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `{"error":"fetch candles 7203.T/1h: twelvedata http 500"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(&mockIndicatorUsecase{
				RecomputeFunc: func(ctx context.Context, req usecase.RecomputeRequest) ([]entity.Point, error) {
					return nil, tt.err
				},
			})

			w := serve(r, http.MethodPost, "/indicators/SMA/7203.T/recompute?timeframe=1h&period=20")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestIndicatorHandler_Recompute(t *testing.T) {
	var got usecase.RecomputeRequest
	r := setupRouter(&mockIndicatorUsecase{
		RecomputeFunc: func(ctx context.Context, req usecase.RecomputeRequest) ([]entity.Point, error) {
			got = req
			return []entity.Point{{Timestamp: t1, Value: 105.5}}, nil
		},
	})

	w := serve(r, http.MethodPost,
		"/indicators/SMA/BTCUSDT/recompute?timeframe=1m&period=3&start=2025-01-01T00:00:00Z&end=2025-01-01T01:00:00Z&limit=50")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"count":1,"data":[{"time":"2025-01-01T01:00:00Z","value":105.5}]}`, w.Body.String())

	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "1m", got.Timeframe)
	assert.Equal(t, "SMA", got.Kind)
	assert.Equal(t, params.Params{Period: 3}, got.Params)
	require.NotNil(t, got.Start)
	require.NotNil(t, got.End)
	assert.True(t, got.Start.Equal(t0))
	assert.True(t, got.End.Equal(t1))
	assert.Equal(t, 50, got.Limit)
}

func TestIndicatorHandler_RecomputeWithoutBounds(t *testing.T) {
	var got usecase.RecomputeRequest
	r := setupRouter(&mockIndicatorUsecase{
		RecomputeFunc: func(ctx context.Context, req usecase.RecomputeRequest) ([]entity.Point, error) {
			got = req
			return nil, nil
		},
	})

	w := serve(r, http.MethodPost, "/indicators/SMA/BTCUSDT/recompute?timeframe=1m&period=3")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"count":0,"data":[]}`, w.Body.String())
	assert.Nil(t, got.Start)
	assert.Nil(t, got.End)
	assert.Zero(t, got.Limit)
}

func TestIndicatorHandler_RecomputeBadTime(t *testing.T) {
	r := setupRouter(&mockIndicatorUsecase{})

	w := serve(r, http.MethodPost, "/indicators/SMA/BTCUSDT/recompute?timeframe=1m&period=3&start=yesterday")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"Malformed"`)
}

func TestIndicatorHandler_GetRange(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := setupRouter(&mockIndicatorUsecase{
			RangeFunc: func(ctx context.Context, symbol, timeframe, kind string, p params.Params, start, end time.Time, limit int) ([]entity.Point, error) {
				assert.True(t, start.Equal(t0))
				assert.True(t, end.Equal(t1))
				assert.Equal(t, 0, limit)
				return []entity.Point{{Timestamp: t1, Value: 2}, {Timestamp: t0, Value: 1}}, nil
			},
		})

		w := serve(r, http.MethodGet,
			"/indicators/SMA/7203.T/range?timeframe=1h&period=3&start=2025-01-01T00:00:00Z&end=2025-01-01T01:00:00Z")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"symbol":"7203.T","timeframe":"1h","kind":"SMA","params":"{\"period\":3}","count":2,
			"data":[{"time":"2025-01-01T01:00:00Z","value":2},{"time":"2025-01-01T00:00:00Z","value":1}]}`, w.Body.String())
	})

	t.Run("error: start is required", func(t *testing.T) {
		r := setupRouter(&mockIndicatorUsecase{})

		w := serve(r, http.MethodGet, "/indicators/SMA/7203.T/range?timeframe=1h&period=3&end=2025-01-01T01:00:00Z")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestIndicatorHandler_GetLatest(t *testing.T) {
	tests := []struct {
		name         string
		point        *entity.Point
		expectedBody string
	}{
		{
			name:         "value available",
			point:        &entity.Point{Timestamp: t1, Value: 105.5},
			expectedBody: `{"time":"2025-01-01T01:00:00Z","value":105.5}`,
		},
		{
			name:         "not enough candles yet",
			expectedBody: `{"time":null,"value":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(&mockIndicatorUsecase{
				LatestFunc: func(ctx context.Context, symbol, timeframe, kind string, p params.Params) (*entity.Point, error) {
					assert.Equal(t, params.Params{Period: 3}, p)
					return tt.point, nil
				},
			})

			w := serve(r, http.MethodGet, "/indicators/SMA/7203.T/latest?timeframe=1h&period=3")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestIndicatorHandler_Purge(t *testing.T) {
	r := setupRouter(&mockIndicatorUsecase{
		PurgeFunc: func(ctx context.Context, symbol, timeframe, kind string, p params.Params) (int64, error) {
			assert.Equal(t, "7203.T", symbol)
			assert.Equal(t, params.Params{Period: 5}, p)
			return 42, nil
		},
	})

	w := serve(r, http.MethodDelete, "/indicators/SMA/7203.T?timeframe=1h&period=5")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":42}`, w.Body.String())
}
