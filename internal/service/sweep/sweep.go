// Package sweep varies one parameter of a configuration and reports how cost
// and latency respond.
package sweep

import (
	"encoding/json"
	"log/slog"
	"math"

	"github.com/genai-cost-planner/genai-cost-planner/internal/metrics"
	"github.com/genai-cost-planner/genai-cost-planner/internal/planner"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

const (
	DefaultMaxBatch      = 32
	DefaultContextPoints = 30
)

// Axis names the swept parameter
type Axis string

const (
	AxisBatchSize     Axis = "batch_size"
	AxisContextTokens Axis = "context_tokens"
)

// Point is one evaluated position along the axis
type Point struct {
	X            float64 `json:"x"`
	CostPerQuery float64 `json:"cost_per_query"`
	P50Seconds   float64 `json:"p50_s"`
	P95Seconds   float64 `json:"p95_s"`
	Rho          float64 `json:"rho"`
	Stable       bool    `json:"stable"`
}

type pointWire struct {
	X            float64  `json:"x"`
	CostPerQuery float64  `json:"cost_per_query"`
	P50Seconds   *float64 `json:"p50_s"`
	P95Seconds   *float64 `json:"p95_s"`
	Rho          float64  `json:"rho"`
	Stable       bool     `json:"stable"`
}

// MarshalJSON writes unstable percentiles as null
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointWire{
		X:            p.X,
		CostPerQuery: p.CostPerQuery,
		P50Seconds:   finite(p.P50Seconds),
		P95Seconds:   finite(p.P95Seconds),
		Rho:          p.Rho,
		Stable:       p.Stable,
	})
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// Series is an ordered sweep
type Series struct {
	Axis   Axis    `json:"axis"`
	Points []Point `json:"points"`
}

// Service runs sweeps through an Evaluator
type Service struct {
	evaluator planner.Evaluator
	logger    *slog.Logger
}

// Option configures the service
type Option func(*Service)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a sweep service
func New(evaluator planner.Evaluator, opts ...Option) *Service {
	s := &Service{
		evaluator: evaluator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BatchSizes evaluates batch sizes 1..maxBatch. maxBatch < 1 uses
// DefaultMaxBatch.
func (s *Service) BatchSizes(base models.Params, maxBatch int) Series {
	if maxBatch < 1 {
		maxBatch = DefaultMaxBatch
	}
	series := Series{Axis: AxisBatchSize, Points: make([]Point, 0, maxBatch)}
	for b := 1; b <= maxBatch; b++ {
		p := base
		p.BatchSize = b
		series.Points = append(series.Points, s.point(float64(b), p))
	}
	return series
}

// ContextLengths evaluates n evenly spaced context lengths from 0 to
// max(1, 2×baseline context). n < 2 uses DefaultContextPoints.
func (s *Service) ContextLengths(base models.Params, n int) Series {
	if n < 2 {
		n = DefaultContextPoints
	}
	hi := math.Max(1, 2*base.Normalize().ContextTokens)

	series := Series{Axis: AxisContextTokens, Points: make([]Point, 0, n)}
	for i := 0; i < n; i++ {
		p := base
		p.ContextTokens = hi * float64(i) / float64(n-1)
		series.Points = append(series.Points, s.point(p.ContextTokens, p))
	}
	return series
}

func (s *Service) point(x float64, p models.Params) Point {
	res := s.evaluator.Evaluate(p)
	metrics.RecordEvaluation("sweep", res.Latency.Stable)
	return Point{
		X:            x,
		CostPerQuery: res.Cost.PerQuery,
		P50Seconds:   res.Latency.P50Seconds,
		P95Seconds:   res.Latency.P95Seconds,
		Rho:          res.Latency.Rho,
		Stable:       res.Latency.Stable,
	}
}
