package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushq/classroom-api/internal/service"
)

// Metrics records one HTTP observation per request. A nil metrics service
// disables collection.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		// The route template keeps label cardinality bounded; raw URLs
		// are used only for unmatched requests.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
