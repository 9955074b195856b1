// Package api is the engine's HTTP surface: the launch webhook plus
// health, metrics, audit and job endpoints.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/config"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/jobs"
	"github.com/0xayot/davids-sling/internal/launch"
	"github.com/0xayot/davids-sling/internal/observability"
)

// KeyHeader carries the shared webhook secret.
const KeyHeader = "x-davids-pouch-key"

const notFoundBody = "404 page not found"

// LaunchHandler consumes pool-creation events.
type LaunchHandler interface {
	Handle(ctx context.Context, ev launch.Event) (*domain.TokenLaunch, error)
}

// AuditLog reads the audit trail.
type AuditLog interface {
	Recent(ctx context.Context, limit int) ([]*domain.OnchainTransaction, error)
	Query(traceID string) []domain.OnchainTransaction
}

// JobRunner exposes scheduled jobs for manual runs.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
	Statuses() []jobs.Status
}

// Deps are the server's collaborators. Audit and Jobs are optional.
type Deps struct {
	Launches LaunchHandler
	Tuning   config.TuningSource
	Health   *observability.HealthMonitor
	Metrics  *observability.Registry
	Audit    AuditLog
	Jobs     JobRunner
}

// Server routes HTTP requests and tracks webhook work handed off to the
// background.
type Server struct {
	Deps
	engine   *gin.Engine
	baseCtx  context.Context
	inflight sync.WaitGroup
	rejected *observability.Counter
}

// New builds the router. Handed-off launch events run on baseCtx, which
// should stay live until Wait returns.
func New(baseCtx context.Context, deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = observability.SlingMetrics()
	}
	if deps.Health == nil {
		deps.Health = observability.NewHealthMonitor(0)
	}
	s := &Server{
		Deps:     deps,
		baseCtx:  baseCtx,
		rejected: deps.Metrics.NewCounter(observability.MetricWebhookRejected, "Webhook requests rejected by key check"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.NoRoute(notFound)
	r.NoMethod(notFound)

	r.POST("/webhook/raydium", s.keyed(s.raydiumWebhook))
	r.POST("/webhooks/raydium_token_event", s.keyed(s.raydiumWebhook))

	r.GET("/healthz", s.health)
	r.GET("/metrics", s.metricsJSON)
	r.GET("/metrics/prometheus", gin.WrapH(observability.NewPrometheusExporter(deps.Metrics)))
	r.GET("/audit/recent", s.auditRecent)
	r.GET("/audit/trace/:trace", s.auditTrace)
	r.GET("/jobs", s.jobStatuses)
	r.POST("/jobs/:name/run", s.keyed(s.runJob))

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Wait blocks until every handed-off webhook event has finished, or ctx ends.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func notFound(c *gin.Context) {
	c.String(http.StatusNotFound, notFoundBody)
}

// keyed guards h with the webhook secret. The secret is read per request; a
// missing or wrong key, or an unset secret, looks like an unknown route.
func (s *Server) keyed(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		tuning, err := s.Tuning.Tuning()
		if err != nil {
			log.Error().Err(err).Msg("api: tuning unavailable, rejecting request")
		}
		got := c.GetHeader(KeyHeader)
		if err != nil || tuning.WebhookKey == "" || got == "" ||
			subtle.ConstantTimeCompare([]byte(got), []byte(tuning.WebhookKey)) != 1 {
			s.rejected.Inc()
			notFound(c)
			c.Abort()
			return
		}
		h(c)
	}
}

func (s *Server) raydiumWebhook(c *gin.Context) {
	var ev launch.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if _, err := s.Launches.Handle(s.baseCtx, ev); err != nil {
			log.Error().Err(err).Str("contract", ev.BaseInfo.Address).Msg("api: launch event failed")
		}
	}()
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (s *Server) health(c *gin.Context) {
	h := s.Health.Check(c.Request.Context())
	code := http.StatusOK
	if !h.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, h)
}

func (s *Server) metricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.Snapshot())
}

func (s *Server) auditRecent(c *gin.Context) {
	if s.Audit == nil {
		notFound(c)
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	rows, err := s.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("api: audit query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": rows})
}

func (s *Server) auditTrace(c *gin.Context) {
	if s.Audit == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": s.Audit.Query(c.Param("trace"))})
}

func (s *Server) jobStatuses(c *gin.Context) {
	if s.Jobs == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.Jobs.Statuses()})
}

func (s *Server) runJob(c *gin.Context) {
	if s.Jobs == nil {
		notFound(c)
		return
	}
	name := c.Param("name")
	known := false
	for _, st := range s.Jobs.Statuses() {
		if st.Name == name {
			known = true
			break
		}
	}
	if !known {
		notFound(c)
		return
	}
	if err := s.Jobs.RunNow(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusOK, gin.H{"job": name, "status": "failed", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": name, "status": "ok"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("api: request")
	}
}
