package router

import (
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-kv-commerce/internal/core/kv"
	"go-kv-commerce/internal/perf"
	"go-kv-commerce/internal/transport/http/handler"
	mdw "go-kv-commerce/internal/transport/http/middleware"
)

// NewOpsEngine builds the monitoring-only engine: /health, /metrics, /stats.
func NewOpsEngine(l *zap.Logger, gw *kv.Gateway, mon *perf.Monitor) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(50, 100),
		mdw.ConcurrencyLimit(100),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second),
		ginzap.RecoveryWithZap(l, true),
		cors.Default(),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	h := &handler.OpsHandler{GW: gw, Mon: mon}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/stats", h.Stats)
	r.GET("/stats/:type", h.StatsByType)

	return r
}
