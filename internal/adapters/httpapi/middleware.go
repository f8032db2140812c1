package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/cp25sy5-modjot/ledger-service/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ActorHeader carries the id of the family member who sent the message.
const ActorHeader = "X-Actor-ID"

const actorKey = "actor"

// AllowlistMiddleware refuses every actor not on the list. An empty list
// refuses everybody.
func AllowlistMiddleware(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}

	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if _, ok := set[actor]; !ok || actor == "" {
			log.Warn().Str("actor", actor).Str("path", c.Request.URL.Path).Msg("actor not allowed")
			Handler(c, domain.ErrActorNotAllowed)
			c.Abort()
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actor(c *gin.Context) string {
	return c.GetString(actorKey)
}

// MetricsMiddleware updates Prometheus metrics.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Replace all URL parameters with their name to reduce cardinality
		url := c.Request.URL.Path
		for _, p := range c.Params {
			url = strings.Replace(url, p.Value, fmt.Sprintf(":%s", p.Key), 1)
		}

		m.Request(strconv.Itoa(c.Writer.Status()), c.Request.Method, url, time.Since(start))
	}
}
