package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusware/atp-api/internal/service"
)

// Metrics records duration and status for every request, labelled by the
// matched route so path parameters do not explode the cardinality. A nil
// service records nothing.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
