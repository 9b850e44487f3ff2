package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xaenox/regretgpt/internal/cache"
	"github.com/xaenox/regretgpt/internal/classifier"
	"github.com/xaenox/regretgpt/internal/models"
	"github.com/xaenox/regretgpt/internal/storage"
	"go.uber.org/zap"
)

const (
	Version = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

// Evaluator is the classification core as seen by the HTTP layer.
type Evaluator interface {
	Evaluate(ctx context.Context, req models.ClassificationRequest) classifier.Outcome
	LastModel() string
}

type Config struct {
	Addr           string
	Production     bool
	AllowedOrigins []string
	// RequestTimeout bounds one classification; zero disables it.
	RequestTimeout time.Duration
}

type Server struct {
	cfg       Config
	evaluator Evaluator
	storage   storage.Storage
	cache     cache.Cache
	logger    *zap.Logger
	engine    *gin.Engine
}

func New(cfg Config, evaluator Evaluator, store storage.Storage, verdictCache cache.Cache, logger *zap.Logger) (*Server, error) {
	if verdictCache == nil {
		verdictCache = cache.NoopCache{}
	}

	corsConfig := corsConfig(cfg)
	if err := corsConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CORS configuration: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		evaluator: evaluator,
		storage:   store,
		cache:     verdictCache,
		logger:    logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), processTime(), requestLogger(logger), cors.New(corsConfig))
	engine.GET("/health", s.handleHealth)
	engine.POST("/classify", s.handleClassify)
	engine.GET("/verdicts", s.handleVerdicts)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine = engine

	return s, nil
}

func corsConfig(cfg Config) cors.Config {
	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"*"},
		MaxAge:       time.Hour,
	}
	if cfg.Production {
		c.AllowOrigins = cfg.AllowedOrigins
		c.AllowCredentials = true
		c.AllowWildcard = true
		c.AllowBrowserExtensions = true
	} else {
		c.AllowAllOrigins = true
	}
	return c
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting RegretGPT backend", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
