// Package api exposes discovery runs and review over HTTP with gin.
package api

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mp3fbf/finance-analyzer/internal/analysis"
	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/engine"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
)

// Runner executes a discovery run. *engine.Workflow satisfies it.
type Runner interface {
	Run(ctx context.Context, progress engine.ProgressFunc) (*model.DiscoveryResult, error)
}

// Reviewer records human verdicts. *engine.Validator satisfies it.
type Reviewer interface {
	Pending(ctx context.Context) ([]model.MerchantDiscovery, error)
	Next(ctx context.Context) (*model.MerchantDiscovery, error)
	Confirm(ctx context.Context, id, notes string) (*model.MerchantDiscovery, error)
	Correct(ctx context.Context, id, name, notes string) (*model.MerchantDiscovery, error)
	Reject(ctx context.Context, id, notes string) (*model.MerchantDiscovery, error)
}

// Options configures a Server.
type Options struct {
	Logger    *slog.Logger
	Extractor *analysis.Extractor
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	// TLS, when set, makes ListenAndServe serve HTTPS.
	TLS *tls.Config
}

// Server holds the handlers' dependencies.
type Server struct {
	storage   service.Storage
	runner    Runner
	reviewer  Reviewer
	extractor *analysis.Extractor
	metrics   http.Handler
	tls       *tls.Config
	logger    *slog.Logger
	running   atomic.Bool
}

// NewServer creates the API server.
func NewServer(storage service.Storage, runner Runner, reviewer Reviewer, opts Options) *Server {
	if opts.Extractor == nil {
		opts.Extractor = analysis.NewExtractor(nil)
	}
	return &Server{
		storage:   storage,
		runner:    runner,
		reviewer:  reviewer,
		extractor: opts.Extractor,
		metrics:   opts.Metrics,
		tls:       opts.TLS,
		logger:    common.LoggerOrDefault(opts.Logger),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := r.Group("/api")
	{
		runs := api.Group("/discoveries/run")
		{
			runs.POST("", s.runDiscovery)
			runs.GET("/stream", s.streamDiscovery)
		}

		discoveries := api.Group("/discoveries")
		{
			discoveries.GET("", s.listDiscoveries)
			discoveries.GET("/next", s.nextDiscovery)
			discoveries.GET("/:id", s.getDiscovery)
			discoveries.POST("/:id/confirm", s.confirmDiscovery)
			discoveries.POST("/:id/correct", s.correctDiscovery)
			discoveries.POST("/:id/reject", s.rejectDiscovery)
		}

		api.GET("/learning", s.listLearning)
		api.GET("/contexts", s.listContexts)
	}

	return r
}

// ListenAndServe serves the API on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         s.tls,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API listening", "addr", addr, "tls", s.tls != nil)
		if s.tls != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down API")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}
