// Package httpapi is the HTTP surface the chat command router talks to.
// Every request names its actor in the X-Actor-ID header.
package httpapi

import (
	"context"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/cp25sy5-modjot/ledger-service/internal/metrics"
	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Engine is the set of operations the API exposes.
type Engine interface {
	SubmitExpense(ctx context.Context, actor string, payload domain.Payload) (domain.Expense, error)
	SubmitGoal(ctx context.Context, actor string, payload domain.Payload) (domain.Goal, error)
	EditGoal(ctx context.Context, id, field, value string) (domain.Goal, error)
	ChangeGoalStatus(ctx context.Context, id, status string) (domain.Goal, error)
	UndoLastExpense(ctx context.Context, actor string) (domain.Expense, error)
	UndoLastGoal(ctx context.Context, actor string) (domain.Goal, error)
	EditExpense(ctx context.Context, actor string, position int, field, value string) (domain.Expense, error)
	DeleteGoal(ctx context.Context, actor, id string) (domain.Goal, error)
	ListGoals(ctx context.Context) ([]domain.Goal, error)
	RecentExpenses(ctx context.Context, actor string, n int) ([]domain.Expense, error)
	Healthy() error
}

type Options struct {
	Engine        Engine
	AllowedActors []string
	Gatherer      prometheus.Gatherer
	Metrics       *metrics.Metrics
	// MaxUploadBytes bounds a photo upload.
	MaxUploadBytes int64
}

type Controller struct {
	engine    Engine
	maxUpload int64
}

// Router builds the gin engine with all routes attached.
func Router(opts Options) *gin.Engine {
	r := gin.New()

	// Don’t process X-Forwarded-For header as we do not do anything with
	// client IPs
	r.ForwardedByClientIP = false
	r.HandleMethodNotAllowed = true
	_ = r.SetTrustedProxies([]string{})

	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(logger.SetLogger(
		logger.WithDefaultLevel(zerolog.InfoLevel),
		logger.WithClientErrorLevel(zerolog.InfoLevel),
		logger.WithServerErrorLevel(zerolog.ErrorLevel),
		logger.WithLogger(func(c *gin.Context, logger zerolog.Logger) zerolog.Logger {
			return logger.With().
				Str("request-id", requestid.Get(c)).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Int("status", c.Writer.Status()).
				Int("size", c.Writer.Size()).
				Str("actor", c.GetHeader(ActorHeader)).
				Logger()
		})))
	r.Use(MetricsMiddleware(opts.Metrics))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 4 << 20
	}

	co := Controller{engine: opts.Engine, maxUpload: maxUpload}

	r.GET("/healthz", co.GetHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.GET("/help", GetHelp)

	authed := v1.Group("", AllowlistMiddleware(opts.AllowedActors))
	co.RegisterExpenseRoutes(authed.Group("/expenses"))
	co.RegisterGoalRoutes(authed.Group("/goals"))

	return r
}

// GetHealthz answers 204 while the ledger accepts writes.
func (co Controller) GetHealthz(c *gin.Context) {
	if err := co.engine.Healthy(); err != nil {
		Handler(c, err)
		return
	}
	c.Status(204)
}
