package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/regretgpt/internal/cache"
	"github.com/xaenox/regretgpt/internal/classifier"
	"github.com/xaenox/regretgpt/internal/metrics"
	"github.com/xaenox/regretgpt/internal/models"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	modelCache = "cache"
)

var errEmptyText = errors.New("typed_text cannot be empty")

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
	Model   string `json:"model"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Message: "RegretGPT backend is running",
		Version: Version,
		Model:   s.evaluator.LastModel(),
	})
}

func (s *Server) handleClassify(c *gin.Context) {
	var req models.ClassificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, err)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		s.reject(c, errEmptyText)
		return
	}

	ctx := c.Request.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	s.logger.Info("Classifying text",
		zap.Int("length", utf8.RuneCountInString(req.Text)),
		zap.String("url", req.URL),
		zap.String("request_id", c.GetString(ctxRequestID)))

	start := time.Now()
	hour := classifier.HourOf(req.Timestamp)
	key := cache.Key(req, hour)

	outcome, ok := s.cached(ctx, key, hour)
	if !ok {
		outcome = s.evaluator.Evaluate(ctx, req)
		if !outcome.Fallback {
			if err := s.cache.Set(ctx, key, outcome.Result); err != nil {
				s.logger.Warn("Failed to cache verdict", zap.Error(err))
			}
		}
	}
	metrics.ClassifyDuration.Observe(time.Since(start).Seconds())
	metrics.Classifications.WithLabelValues(string(outcome.Result.InterventionStrength), outcomeLabel(outcome)).Inc()

	s.record(ctx, c.GetString(ctxRequestID), req, outcome)

	s.logger.Info("Classification complete",
		zap.Int("score", outcome.Result.RegretScore),
		zap.String("strength", string(outcome.Result.InterventionStrength)),
		zap.String("model", outcome.Model),
		zap.Bool("fallback", outcome.Fallback))
	c.JSON(http.StatusOK, outcome.Result)
}

func (s *Server) cached(ctx context.Context, key string, hour *int) (classifier.Outcome, bool) {
	result, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("Verdict cache lookup failed", zap.Error(err))
		return classifier.Outcome{}, false
	case !ok:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return classifier.Outcome{}, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return classifier.Outcome{Result: result, Model: modelCache, Hour: hour}, true
}

// record writes the history entry. Failures are logged only.
func (s *Server) record(ctx context.Context, requestID string, req models.ClassificationRequest, outcome classifier.Outcome) {
	verdict := &models.Verdict{
		URL:        req.URL,
		TextLength: utf8.RuneCountInString(req.Text),
		Hour:       outcome.Hour,
		Result:     outcome.Result,
		Model:      outcome.Model,
		Fallback:   outcome.Fallback,
	}
	if err := s.storage.SaveVerdict(context.WithoutCancel(ctx), verdict); err != nil {
		s.logger.Error("Failed to save verdict",
			zap.Error(err),
			zap.String("request_id", requestID))
	}
}

func (s *Server) reject(c *gin.Context, err error) {
	s.logger.Warn("Validation error", zap.Error(err))
	c.JSON(http.StatusBadRequest, classifier.ValidationErrorResult(err))
}

func (s *Server) handleVerdicts(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	verdicts, err := s.storage.RecentVerdicts(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to load verdicts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load verdicts"})
		return
	}
	if verdicts == nil {
		verdicts = []*models.Verdict{}
	}
	c.JSON(http.StatusOK, verdicts)
}

func outcomeLabel(o classifier.Outcome) string {
	switch {
	case o.Model == modelCache:
		return "cache"
	case o.Fallback:
		return "fallback"
	default:
		return "model"
	}
}
