package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campus-desk/grievance-api/internal/service"
)

// Metrics records method, route, status and latency for every request.
// The route template is preferred over the raw path so /grievances/:id
// stays a single series.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// unmatched requests (404s) share one series
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
