// Package handler はindicatorフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
	"github.com/sirupsen/logrus"

	"indicator_backend/internal/feature/indicator/domain"
	"indicator_backend/internal/feature/indicator/domain/entity"
	"indicator_backend/internal/feature/indicator/domain/params"
	"indicator_backend/internal/feature/indicator/transport/http/dto"
	"indicator_backend/internal/feature/indicator/usecase"
)

// IndicatorUsecase は指標操作のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type IndicatorUsecase interface {
	RecomputeAndStore(ctx context.Context, req usecase.RecomputeRequest) ([]entity.Point, error)
	GetSeries(ctx context.Context, symbol, timeframe, kind string, p params.Params, count int) ([]entity.Point, error)
	GetRange(ctx context.Context, symbol, timeframe, kind string, p params.Params, start, end time.Time, limit int) ([]entity.Point, error)
	GetLatestValue(ctx context.Context, symbol, timeframe, kind string, p params.Params) (*entity.Point, error)
	PurgeSeries(ctx context.Context, symbol, timeframe, kind string, p params.Params) (int64, error)
}

// IndicatorHandler は指標のHTTPリクエストを処理します。
type IndicatorHandler struct {
	uc IndicatorUsecase
}

// NewIndicatorHandler は指定されたusecaseでIndicatorHandlerの新しいインスタンスを生成します。
func NewIndicatorHandler(uc IndicatorUsecase) *IndicatorHandler {
	return &IndicatorHandler{uc: uc}
}

// seriesQuery is the selector shared by every endpoint.
type seriesQuery struct {
	kind      string
	symbol    string
	timeframe string
	params    params.Params
}

// Recompute は指標系列を再計算して保存し、計算結果を返します。
//
// エンドポイント例:
// POST /indicators/SMA/7203.T/recompute?timeframe=1d&period=20&start=2025-01-01T00:00:00Z
func (h *IndicatorHandler) Recompute(c *gin.Context) {
	q, ok := h.bindSeries(c)
	if !ok {
		return
	}
	var start, end *time.Time
	var limit *int
	if !bindOptional(c, "start", &start) || !bindOptional(c, "end", &end) || !bindOptional(c, "limit", &limit) {
		return
	}

	points, err := h.uc.RecomputeAndStore(c.Request.Context(), usecase.RecomputeRequest{
		Symbol:    q.symbol,
		Timeframe: q.timeframe,
		Kind:      q.kind,
		Params:    q.params,
		Start:     start,
		End:       end,
		Limit:     deref(limit),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RecomputeResponse{
		Success: true,
		Count:   len(points),
		Data:    toResponse(points),
	})
}

// GetSeries は保存済みの直近count件を古い順で返します。
//
// エンドポイント例:
// GET /indicators/SMA/7203.T?timeframe=1d&period=20&count=50
func (h *IndicatorHandler) GetSeries(c *gin.Context) {
	q, ok := h.bindSeries(c)
	if !ok {
		return
	}
	var count *int
	if !bindOptional(c, "count", &count) {
		return
	}

	points, err := h.uc.GetSeries(c.Request.Context(), q.symbol, q.timeframe, q.kind, q.params, deref(count))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, seriesResponse(q, points))
}

// GetRange は[start, end]内の保存済み値を新しい順で返します。
//
// エンドポイント例:
// GET /indicators/SMA/7203.T/range?timeframe=1d&period=20&start=2025-01-01T00:00:00Z&end=2025-02-01T00:00:00Z
func (h *IndicatorHandler) GetRange(c *gin.Context) {
	q, ok := h.bindSeries(c)
	if !ok {
		return
	}
	var start, end time.Time
	var limit *int
	if !bindRequired(c, "start", &start) || !bindRequired(c, "end", &end) || !bindOptional(c, "limit", &limit) {
		return
	}

	points, err := h.uc.GetRange(c.Request.Context(), q.symbol, q.timeframe, q.kind, q.params, start, end, deref(limit))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, seriesResponse(q, points))
}

// GetLatest は最新ローソク足から指標値をその場で計算します。
// ローソク足が不足している場合は {"time": null, "value": null} を返します。
func (h *IndicatorHandler) GetLatest(c *gin.Context) {
	q, ok := h.bindSeries(c)
	if !ok {
		return
	}

	p, err := h.uc.GetLatestValue(c.Request.Context(), q.symbol, q.timeframe, q.kind, q.params)
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, dto.LatestResponse{})
		return
	}
	ts := formatTime(p.Timestamp)
	v := p.Value
	c.JSON(http.StatusOK, dto.LatestResponse{Time: &ts, Value: &v})
}

// Purge は指標系列の保存済み値をすべて削除します。
func (h *IndicatorHandler) Purge(c *gin.Context) {
	q, ok := h.bindSeries(c)
	if !ok {
		return
	}

	n, err := h.uc.PurgeSeries(c.Request.Context(), q.symbol, q.timeframe, q.kind, q.params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PurgeResponse{Deleted: n})
}

// bindSeries reads kind/symbol from the path and timeframe plus either period
// or a raw params identity from the query.
func (h *IndicatorHandler) bindSeries(c *gin.Context) (seriesQuery, bool) {
	q := seriesQuery{
		kind:      c.Param("kind"),
		symbol:    c.Param("symbol"),
		timeframe: c.Query("timeframe"),
	}

	if raw, ok := c.GetQuery("params"); ok {
		p, err := params.Parse(raw)
		if err != nil {
			writeError(c, err)
			return q, false
		}
		q.params = p
		return q, true
	}

	var period *float64
	if !bindOptional(c, "period", &period) {
		return q, false
	}
	if period == nil {
		writeError(c, domain.NewInvalidParameter(domain.ReasonMalformed, "period or params is required"))
		return q, false
	}
	n, err := params.ValidatePeriod(*period)
	if err != nil {
		writeError(c, err)
		return q, false
	}
	q.params = params.Params{Period: n}
	return q, true
}

func bindOptional(c *gin.Context, name string, dest any) bool {
	return bind(c, name, false, dest)
}

func bindRequired(c *gin.Context, name string, dest any) bool {
	return bind(c, name, true, dest)
}

func bind(c *gin.Context, name string, required bool, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, required, name, c.Request.URL.Query(), dest); err != nil {
		writeError(c, domain.NewInvalidParameter(domain.ReasonMalformed, "%v", err))
		return false
	}
	return true
}

// writeError maps error categories to HTTP status codes.
func writeError(c *gin.Context, err error) {
	var (
		insufficient *domain.InsufficientDataError
		status       int
		body         = dto.ErrorResponse{Error: err.Error()}
	)
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		status = http.StatusBadRequest
		body.Reason = string(domain.ReasonOf(err))
	case errors.As(err, &insufficient):
		status = http.StatusUnprocessableEntity
		body.Required = &insufficient.Required
		body.Available = &insufficient.Available
	case errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	default:
		// 市場データ取得の失敗など
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": status,
		}).Error("indicator request failed")
	}
	c.JSON(status, body)
}

func seriesResponse(q seriesQuery, points []entity.Point) dto.SeriesResponse {
	id, _ := params.Canonicalize(q.params)
	return dto.SeriesResponse{
		Symbol:    q.symbol,
		Timeframe: q.timeframe,
		Kind:      strings.ToUpper(strings.TrimSpace(q.kind)),
		Params:    id,
		Count:     len(points),
		Data:      toResponse(points),
	}
}

func toResponse(points []entity.Point) []dto.PointResponse {
	out := make([]dto.PointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, dto.PointResponse{Time: formatTime(p.Timestamp), Value: p.Value})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
