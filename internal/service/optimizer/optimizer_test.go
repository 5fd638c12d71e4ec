package optimizer

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genai-cost-planner/genai-cost-planner/internal/planner"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

func baseline() models.Params {
	return models.Params{
		ContextTokens:        1000,
		PromptTokens:         100,
		ResponseTokens:       150,
		ArrivalRateQPS:       1.0,
		CacheHitRate:         0.2,
		CacheSavingsFraction: 0.8,
		BatchSize:            2,
		PricePer1KInput:      0.5,
		PricePer1KOutput:     1.5,
		PrefillTokensPerSec:  20000,
		DecodeTokensPerSec:   150,
		OneWayNetworkMS:      50,
		ServerCount:          1,
		BurstFactor:          1.0,
	}
}

func TestCandidates_Grid(t *testing.T) {
	o := New(planner.Direct)
	cands := o.Candidates(baseline())

	require.Len(t, cands, 3*4*64)

	first := cands[0]
	assert.Equal(t, 500.0, first.ContextTokens)
	assert.Equal(t, 75.0, first.ResponseTokens)
	assert.Equal(t, 1, first.BatchSize)

	last := cands[len(cands)-1]
	assert.Equal(t, 1000.0, last.ContextTokens)
	assert.Equal(t, 187.0, last.ResponseTokens, "150 × 1.25 truncates")
	assert.Equal(t, 64, last.BatchSize)

	// Fields outside the grid keep their baseline values
	for _, c := range cands {
		assert.Equal(t, 1.0, c.ArrivalRateQPS)
		assert.Equal(t, 100.0, c.PromptTokens)
	}
}

func TestCandidates_DeduplicatesCollapsedAxes(t *testing.T) {
	p := baseline()
	p.ContextTokens = 1
	p.ResponseTokens = 1

	o := New(planner.Direct, WithGrid(Grid{
		ContextMultipliers:  []float64{1.0, 0.75, 0.5},
		ResponseMultipliers: []float64{0.5, 0.75, 1.0, 1.25},
		MinBatch:            1,
		MaxBatch:            2,
	}))
	cands := o.Candidates(p)

	// context {0, 1}, response {1}, batch {1, 2}
	require.Len(t, cands, 4)
	assert.Equal(t, 0.0, cands[0].ContextTokens)
	assert.Equal(t, 1.0, cands[0].ResponseTokens)
	assert.Equal(t, 1.0, cands[3].ContextTokens)
}

func TestCandidates_NegativeBaselineClamped(t *testing.T) {
	p := baseline()
	p.ContextTokens = -50
	p.ResponseTokens = -10

	for _, c := range New(planner.Direct).Candidates(p) {
		assert.GreaterOrEqual(t, c.ContextTokens, 0.0)
		assert.GreaterOrEqual(t, c.ResponseTokens, 1.0)
	}
}

func TestOptimize_BestIsCheapestFeasible(t *testing.T) {
	o := New(planner.Direct)
	targets := models.DefaultTargets()

	// A single server cannot meet a 2s p95 at 1 qps; two can
	p := baseline()
	p.ServerCount = 2

	out, err := o.Optimize(context.Background(), p, targets)
	require.NoError(t, err)
	require.True(t, out.Found())

	assert.Equal(t, 768, out.Evaluated)
	assert.InDelta(t, planner.Evaluate(p).Cost.PerQuery, out.BaseCost, 1e-15)

	best := out.Best
	assert.LessOrEqual(t, best.Result.Latency.P95Seconds, targets.SLOP95)
	assert.LessOrEqual(t, best.Result.Latency.Rho, targets.UtilizationCap)
	assert.Equal(t, best.Result.Cost.PerQuery, best.Score.CostPerQuery)

	// Brute force over the same grid
	feasible := 0
	for _, c := range o.Candidates(p) {
		res := planner.Evaluate(c)
		if !Feasible(res, targets) {
			continue
		}
		feasible++
		assert.GreaterOrEqual(t, res.Cost.PerQuery, best.Score.CostPerQuery)
	}
	assert.Equal(t, feasible, out.FeasibleCount)
}

func TestOptimize_UnreachableSLO(t *testing.T) {
	o := New(planner.Direct)

	out, err := o.Optimize(context.Background(), baseline(), models.Targets{SLOP95: 0.0001, UtilizationCap: 0.70})
	require.NoError(t, err)

	assert.False(t, out.Found())
	assert.Nil(t, out.Best)
	assert.Zero(t, out.FeasibleCount)
	assert.Equal(t, 768, out.Evaluated)
}

func TestOptimize_UnstableCandidatesNeverFeasible(t *testing.T) {
	p := baseline()
	p.ArrivalRateQPS = 1000

	out, err := New(planner.Direct).Optimize(context.Background(), p, models.Targets{SLOP95: 1e9, UtilizationCap: 1.0})
	require.NoError(t, err)
	assert.False(t, out.Found())
}

func TestOptimize_TiesGoToFirstCandidate(t *testing.T) {
	flat := planner.Func(func(p models.Params) models.Result {
		res := planner.Evaluate(p)
		res.Cost.PerQuery = 0.01
		res.Latency.P95Seconds = 1
		res.Latency.Rho = 0.1
		return res
	})

	for _, workers := range []int{1, 4, 32} {
		out, err := New(flat, WithWorkers(workers)).Optimize(context.Background(), baseline(), models.DefaultTargets())
		require.NoError(t, err)
		require.True(t, out.Found())
		assert.Equal(t, 0, out.Best.Index, "workers=%d", workers)
		assert.Equal(t, 768, out.FeasibleCount)
	}
}

func TestOptimize_ParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	targets := models.Targets{SLOP95: 3.0, UtilizationCap: 0.9}

	p := baseline()
	p.ServerCount = 2
	p.ArrivalRateQPS = 1.5

	seq, err := New(planner.Direct, WithWorkers(1)).Optimize(ctx, p, targets)
	require.NoError(t, err)
	par, err := New(planner.Direct, WithWorkers(16)).Optimize(ctx, p, targets)
	require.NoError(t, err)

	assert.Equal(t, seq.FeasibleCount, par.FeasibleCount)
	require.Equal(t, seq.Found(), par.Found())
	if seq.Found() {
		assert.Equal(t, seq.Best.Index, par.Best.Index)
		assert.Equal(t, seq.Best.Params, par.Best.Params)
	}
}

func TestOptimize_ThroughMemo(t *testing.T) {
	memo, err := planner.NewMemo(planner.DefaultMemoSize)
	require.NoError(t, err)

	direct, err := New(planner.Direct).Optimize(context.Background(), baseline(), models.DefaultTargets())
	require.NoError(t, err)

	o := New(memo)
	for i := 0; i < 2; i++ {
		cached, err := o.Optimize(context.Background(), baseline(), models.DefaultTargets())
		require.NoError(t, err)
		assert.Equal(t, direct.FeasibleCount, cached.FeasibleCount)
		assert.Equal(t, direct.Best, cached.Best)
	}
	assert.NotZero(t, memo.Stats().Hits)
}

func TestOptimize_Cancelled(t *testing.T) {
	var calls atomic.Int64
	slow := planner.Func(func(p models.Params) models.Result {
		calls.Add(1)
		return planner.Evaluate(p)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := New(slow, WithWorkers(2)).Optimize(ctx, baseline(), models.DefaultTargets())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.Less(t, calls.Load(), int64(768))
}

func TestScore_Less(t *testing.T) {
	assert.True(t, Score{1, 5}.Less(Score{2, 1}))
	assert.True(t, Score{1, 1}.Less(Score{1, 2}))
	assert.False(t, Score{1, 2}.Less(Score{1, 2}))
	assert.False(t, Score{2, 0}.Less(Score{1, 9}))
}
