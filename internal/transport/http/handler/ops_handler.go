package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-kv-commerce/internal/core/kv"
	"go-kv-commerce/internal/perf"
)

// OpsHandler serves the monitoring surface: health probe and performance
// statistics. Business routes live in the HTTP layer, not here.
type OpsHandler struct {
	GW  *kv.Gateway
	Mon *perf.Monitor
}

func (h *OpsHandler) Health(c *gin.Context) {
	report := h.GW.HealthReport(c.Request.Context())
	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Stats returns rolling statistics for every recorded operation type.
// ?windowSec=N restricts to the trailing window.
func (h *OpsHandler) Stats(c *gin.Context) {
	window := windowFromQuery(c)
	out := gin.H{}
	for _, typ := range h.Mon.Types() {
		out[typ] = h.Mon.Statistics(typ, window)
	}
	c.JSON(http.StatusOK, out)
}

func (h *OpsHandler) StatsByType(c *gin.Context) {
	typ := c.Param("type")
	c.JSON(http.StatusOK, h.Mon.Statistics(typ, windowFromQuery(c)))
}

func windowFromQuery(c *gin.Context) time.Duration {
	raw := c.Query("windowSec")
	if raw == "" {
		return 0
	}
	sec, err := time.ParseDuration(raw + "s")
	if err != nil || sec < 0 {
		return 0
	}
	return sec
}
