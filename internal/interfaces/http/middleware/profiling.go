package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/leadcrm/backend/internal/infrastructure/telemetry"
)

// profilingSkipPrefixes are routes whose samples are not worth labelling
var profilingSkipPrefixes = []string{"/health", "/swagger"}

// ProfilingLabels tags profile samples taken while a request runs with its
// route pattern and method, so payment routes can be filtered in Pyroscope.
// Unmatched routes are not labelled to keep cardinality bounded.
func ProfilingLabels(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || hasAnyPrefix(route, profilingSkipPrefixes) {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), map[string]string{
			telemetry.ProfilingLabelRoute:  route,
			telemetry.ProfilingLabelMethod: c.Request.Method,
		}, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
