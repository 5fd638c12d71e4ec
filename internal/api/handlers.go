package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/genai-cost-planner/genai-cost-planner/internal/export"
	"github.com/genai-cost-planner/genai-cost-planner/internal/metrics"
	"github.com/genai-cost-planner/genai-cost-planner/internal/planner"
	"github.com/genai-cost-planner/genai-cost-planner/internal/service/optimizer"
	"github.com/genai-cost-planner/genai-cost-planner/internal/service/recommend"
	"github.com/genai-cost-planner/genai-cost-planner/internal/service/sweep"
	"github.com/genai-cost-planner/genai-cost-planner/internal/storage"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// Request/Response types

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ReadyResponse is the readiness check response
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
}

// TargetedRequest carries a configuration plus optional service targets.
// Omitted targets fall back to the server defaults.
type TargetedRequest struct {
	Params         models.Params `json:"params"`
	SLOP95         *float64      `json:"slo_p95" binding:"omitempty,gt=0"`
	UtilizationCap *float64      `json:"utilization_cap" binding:"omitempty,gt=0,lte=1"`
}

// RecommendResponse is the recommender output
type RecommendResponse struct {
	Recommendations []string       `json:"recommendations"`
	Targets         models.Targets `json:"targets"`
	Result          models.Result  `json:"result"`
}

// OptimizeResponse is the optimizer output. Best is null when no grid point
// meets the targets.
type OptimizeResponse struct {
	RunID     string               `json:"run_id,omitempty"`
	BaseCost  float64              `json:"base_cost"`
	Count     int                  `json:"count"`
	Evaluated int                  `json:"evaluated"`
	Targets   models.Targets       `json:"targets"`
	Best      *optimizer.Candidate `json:"best"`
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   models.ResultVersion,
	}

	if !s.ready.Load() {
		response.Status = "unavailable"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) handleReady(c *gin.Context) {
	response := ReadyResponse{
		Ready:     s.ready.Load(),
		Timestamp: time.Now(),
	}

	if !response.Ready {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) handlePlan(c *gin.Context) {
	var p models.Params
	if err := c.ShouldBindJSON(&p); err != nil {
		s.badRequest(c, err)
		return
	}

	if name := c.Query("profile"); name != "" {
		applied, ok := s.applyProfile(c, name, p)
		if !ok {
			return
		}
		p = applied
	}

	res := s.evaluator.Evaluate(p)
	metrics.RecordEvaluation("plan", res.Latency.Stable)
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleRecommend(c *gin.Context) {
	var req TargetedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	targets := s.resolveTargets(req)
	res := s.evaluator.Evaluate(req.Params)
	metrics.RecordEvaluation("recommend", res.Latency.Stable)

	c.JSON(http.StatusOK, RecommendResponse{
		Recommendations: recommend.Recommend(res, targets),
		Targets:         targets,
		Result:          res,
	})
}

func (s *Server) handleCapacity(c *gin.Context) {
	var p models.Params
	if err := c.ShouldBindJSON(&p); err != nil {
		s.badRequest(c, err)
		return
	}

	plan := planner.PlanCapacity(s.evaluator, p)
	metrics.Evaluations.WithLabelValues("capacity").Inc()
	c.JSON(http.StatusOK, plan)
}

func (s *Server) handleOptimize(c *gin.Context) {
	var req TargetedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	targets := s.resolveTargets(req)
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.optimizeTimeout)
	defer cancel()

	out, err := s.optimizer.Optimize(ctx, req.Params, targets)
	if err != nil {
		status := http.StatusServiceUnavailable
		msg := "optimization cancelled"
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
			msg = "optimization timed out"
		}
		c.JSON(status, ErrorResponse{Error: msg, RequestID: c.GetString("request_id")})
		return
	}

	response := OptimizeResponse{
		BaseCost:  out.BaseCost,
		Count:     out.FeasibleCount,
		Evaluated: out.Evaluated,
		Targets:   targets,
		Best:      out.Best,
	}

	if s.runs != nil {
		run := &models.OptimizationRun{
			Baseline:      req.Params,
			Targets:       targets,
			BaseCost:      out.BaseCost,
			Found:         out.Found(),
			FeasibleCount: out.FeasibleCount,
			Evaluated:     out.Evaluated,
		}
		if out.Best != nil {
			best := out.Best.Params
			run.Best = &best
			run.BestCost = out.Best.Score.CostPerQuery
			run.BestP95 = out.Best.Score.P95Seconds
		}
		// History is best effort; the caller still gets the result
		if err := s.runs.Record(c.Request.Context(), run); err != nil {
			s.logger.WarnContext(c.Request.Context(), "failed to record optimization run", slog.String("error", err.Error()))
		} else {
			response.RunID = run.ID
		}
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit, ok := s.intQuery(c, "limit", storage.DefaultRunLimit, 1, 500)
	if !ok {
		return
	}

	runs, err := s.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, "failed to list optimization runs", err)
		return
	}
	if runs == nil {
		runs = []*models.OptimizationRun{}
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storageError(c, "failed to get optimization run", err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleBatchSweep(c *gin.Context) {
	var p models.Params
	if err := c.ShouldBindJSON(&p); err != nil {
		s.badRequest(c, err)
		return
	}
	maxBatch, ok := s.intQuery(c, "max_batch", sweep.DefaultMaxBatch, 1, 256)
	if !ok {
		return
	}

	s.writeSeries(c, s.sweeps.BatchSizes(p, maxBatch))
}

func (s *Server) handleContextSweep(c *gin.Context) {
	var p models.Params
	if err := c.ShouldBindJSON(&p); err != nil {
		s.badRequest(c, err)
		return
	}
	points, ok := s.intQuery(c, "points", sweep.DefaultContextPoints, 2, 500)
	if !ok {
		return
	}

	s.writeSeries(c, s.sweeps.ContextLengths(p, points))
}

func (s *Server) writeSeries(c *gin.Context, series sweep.Series) {
	if strings.EqualFold(c.Query("format"), "csv") {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(series.Axis)+"_sweep.csv"))
		c.Status(http.StatusOK)
		if err := export.SeriesCSV(c.Writer, series); err != nil {
			s.logger.ErrorContext(c.Request.Context(), "failed to write CSV", slog.String("error", err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, series)
}

// Helpers

func (s *Server) resolveTargets(req TargetedRequest) models.Targets {
	targets := s.targets
	if req.SLOP95 != nil {
		targets.SLOP95 = *req.SLOP95
	}
	if req.UtilizationCap != nil {
		targets.UtilizationCap = *req.UtilizationCap
	}
	return targets
}

// intQuery parses an optional integer query parameter within [lo, hi]. It
// writes a 400 and returns false on bad input.
func (s *Server) intQuery(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     fmt.Sprintf("invalid %s: must be a valid integer, got %q", name, raw),
			RequestID: c.GetString("request_id"),
		})
		return 0, false
	}
	if v < lo || v > hi {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     fmt.Sprintf("invalid %s: must be between %d and %d, got %d", name, lo, hi, v),
			RequestID: c.GetString("request_id"),
		})
		return 0, false
	}
	return v, true
}

func (s *Server) badRequest(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:     fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit),
			RequestID: c.GetString("request_id"),
		})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     sanitizeValidationError(err),
		RequestID: c.GetString("request_id"),
	})
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.ErrorContext(c.Request.Context(), msg, slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:     msg,
		RequestID: c.GetString("request_id"),
	})
}

// storageError maps storage sentinels to status codes
func (s *Server) storageError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), RequestID: c.GetString("request_id")})
	case errors.Is(err, storage.ErrBuiltIn), errors.Is(err, storage.ErrAlreadyExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), RequestID: c.GetString("request_id")})
	default:
		s.internalError(c, msg, err)
	}
}

// sanitizeValidationError converts internal field names to JSON field names
// in validation error messages.
func sanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	var messages []string
	for _, fe := range validationErrs {
		jsonFieldName := toSnakeCase(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", jsonFieldName))
		case "min", "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", jsonFieldName, fe.Param()))
		case "max", "lte":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", jsonFieldName, fe.Param()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", jsonFieldName, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation (%s)", jsonFieldName, fe.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}

var camelBoundary = regexp.MustCompile("([a-z0-9])([A-Z])")

// toSnakeCase converts a PascalCase or camelCase string to snake_case
func toSnakeCase(s string) string {
	fieldMappings := map[string]string{
		"SLOP95":              "slo_p95",
		"UtilizationCap":      "utilization_cap",
		"PricePer1KInput":     "price_per_1k_input",
		"PricePer1KOutput":    "price_per_1k_output",
		"PrefillTokensPerSec": "prefill_tokens_per_sec",
		"DecodeTokensPerSec":  "decode_tokens_per_sec",
	}
	if mapped, ok := fieldMappings[s]; ok {
		return mapped
	}
	return strings.ToLower(camelBoundary.ReplaceAllString(s, "${1}_${2}"))
}
