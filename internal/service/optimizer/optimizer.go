// Package optimizer searches a discrete grid of context length, response
// length and batch size for the cheapest configuration that meets a p95
// latency SLO and a utilization cap.
package optimizer

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/genai-cost-planner/genai-cost-planner/internal/metrics"
	"github.com/genai-cost-planner/genai-cost-planner/internal/planner"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// Grid describes the searched axes. All other fields stay at the baseline.
type Grid struct {
	ContextMultipliers  []float64
	ResponseMultipliers []float64
	MinBatch            int
	MaxBatch            int
}

// DefaultGrid is 3 context × 4 response × 64 batch candidates
func DefaultGrid() Grid {
	return Grid{
		ContextMultipliers:  []float64{1.0, 0.75, 0.5},
		ResponseMultipliers: []float64{0.5, 0.75, 1.0, 1.25},
		MinBatch:            1,
		MaxBatch:            64,
	}
}

// Score orders feasible candidates: cost first, p95 breaks ties
type Score struct {
	CostPerQuery float64 `json:"cost_per_query"`
	P95Seconds   float64 `json:"p95_s"`
}

// Less reports whether s is strictly better than other
func (s Score) Less(other Score) bool {
	if s.CostPerQuery != other.CostPerQuery {
		return s.CostPerQuery < other.CostPerQuery
	}
	return s.P95Seconds < other.P95Seconds
}

// Candidate is one evaluated grid point
type Candidate struct {
	Index  int           `json:"index"` // Enumeration order: context, then response, then batch
	Params models.Params `json:"params"`
	Result models.Result `json:"result"`
	Score  Score         `json:"score"`
}

// Outcome is the result of a search. Best is nil when no grid point is
// feasible.
type Outcome struct {
	Best          *Candidate    `json:"best"`
	FeasibleCount int           `json:"count"`
	Evaluated     int           `json:"evaluated"`
	BaseCost      float64       `json:"base_cost"`
	BaseResult    models.Result `json:"-"`
}

// Found reports whether a feasible candidate exists
func (o *Outcome) Found() bool {
	return o.Best != nil
}

// Optimizer runs grid searches through an Evaluator
type Optimizer struct {
	evaluator planner.Evaluator
	grid      Grid
	workers   int
	logger    *slog.Logger
}

// Option configures the optimizer
type Option func(*Optimizer)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) {
		o.logger = logger
	}
}

// WithGrid replaces the default search grid
func WithGrid(g Grid) Option {
	return func(o *Optimizer) {
		o.grid = g
	}
}

// WithWorkers sets how many candidates are evaluated concurrently
func WithWorkers(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.workers = n
		}
	}
}

// New creates an optimizer. Pass a *planner.Memo to share cached results
// across searches.
func New(evaluator planner.Evaluator, opts ...Option) *Optimizer {
	o := &Optimizer{
		evaluator: evaluator,
		grid:      DefaultGrid(),
		workers:   runtime.GOMAXPROCS(0),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Candidates enumerates the grid around base in search order.
func (o *Optimizer) Candidates(base models.Params) []models.Params {
	n := base.Normalize()
	contexts := scaledAxis(n.ContextTokens, o.grid.ContextMultipliers, 0)
	responses := scaledAxis(n.ResponseTokens, o.grid.ResponseMultipliers, 1)

	var out []models.Params
	for _, ctx := range contexts {
		for _, resp := range responses {
			for b := max(1, o.grid.MinBatch); b <= o.grid.MaxBatch; b++ {
				p := base
				p.ContextTokens = float64(ctx)
				p.ResponseTokens = float64(resp)
				p.BatchSize = b
				out = append(out, p)
			}
		}
	}
	return out
}

// scaledAxis truncates value×m to an integer no lower than floor, then
// deduplicates and sorts ascending.
func scaledAxis(value float64, multipliers []float64, floor int) []int {
	axis := make([]int, 0, len(multipliers))
	for _, m := range multipliers {
		axis = append(axis, max(floor, int(value*m)))
	}
	slices.Sort(axis)
	return slices.Compact(axis)
}

// Optimize evaluates every grid point and returns the cheapest feasible one.
// A candidate is feasible when p95 ≤ SLO and utilization ≤ cap. Ties on
// (cost, p95) go to the lowest enumeration index regardless of which worker
// finished first. The only error is ctx cancellation.
func (o *Optimizer) Optimize(ctx context.Context, base models.Params, targets models.Targets) (*Outcome, error) {
	start := time.Now()

	baseResult := o.evaluator.Evaluate(base)
	candidates := o.Candidates(base)
	results := make([]models.Result, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.evaluator.Evaluate(candidates[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Evaluated:  len(candidates),
		BaseCost:   baseResult.Cost.PerQuery,
		BaseResult: baseResult,
	}
	for i, res := range results {
		if !Feasible(res, targets) {
			continue
		}
		outcome.FeasibleCount++

		score := Score{CostPerQuery: res.Cost.PerQuery, P95Seconds: res.Latency.P95Seconds}
		if outcome.Best == nil || score.Less(outcome.Best.Score) {
			outcome.Best = &Candidate{
				Index:  i,
				Params: candidates[i],
				Result: res,
				Score:  score,
			}
		}
	}

	duration := time.Since(start)
	metrics.RecordOptimization(duration, outcome.Evaluated, outcome.FeasibleCount, outcome.Found())
	o.logger.Debug("optimization complete",
		slog.Int("evaluated", outcome.Evaluated),
		slog.Int("feasible", outcome.FeasibleCount),
		slog.Bool("found", outcome.Found()),
		slog.Duration("duration", duration))

	return outcome, nil
}

// Feasible reports whether res meets both targets
func Feasible(res models.Result, targets models.Targets) bool {
	return res.Latency.P95Seconds <= targets.SLOP95 && res.Latency.Rho <= targets.UtilizationCap
}
