package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/aliscout/metrics"
)

// Metrics counts finished requests by route template and status code.
// Unmatched paths are counted under "unmatched" to keep label cardinality bounded.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.IncHTTP(route, strconv.Itoa(c.Writer.Status()))
	}
}
