// Package router wires HTTP handlers onto the gin engine.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	indicatorhandler "indicator_backend/internal/feature/indicator/transport/handler"
	"indicator_backend/internal/platform/http/handler"
)

func NewRouter(indicators *indicatorhandler.IndicatorHandler, health *handler.HealthHandler, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 導通確認用
	r.GET("/healthz", health.Live)
	r.HEAD("/healthz", health.Live)
	r.OPTIONS("/healthz", health.Live)
	// DB / Redis の疎通確認
	r.GET("/readyz", health.Ready)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	g := r.Group("/indicators/:kind/:symbol")
	{
		g.GET("", indicators.GetSeries)
		g.DELETE("", indicators.Purge)
		g.POST("/recompute", indicators.Recompute)
		g.GET("/range", indicators.GetRange)
		g.GET("/latest", indicators.GetLatest)
	}

	return r
}
