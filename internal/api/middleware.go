package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wecom-keyword-alert/internal/common/metrics"
)

// metricsMiddleware records per-request counters and latency. Unmatched
// routes fall back to the raw path so 404s still get counted.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(endpoint, status, method).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
	}
}
