package planner

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

type countingEvaluator struct {
	calls atomic.Int64
}

func (c *countingEvaluator) Evaluate(p models.Params) models.Result {
	c.calls.Add(1)
	return Evaluate(p)
}

func TestNewMemo_InvalidSize(t *testing.T) {
	_, err := NewMemo(0)
	assert.Error(t, err)

	_, err = NewMemo(-1)
	assert.Error(t, err)
}

func TestMemo_MatchesDirectEvaluation(t *testing.T) {
	memo, err := NewMemo(DefaultMemoSize)
	require.NoError(t, err)

	inputs := []models.Params{
		pocParams(),
		{},
		{ContextTokens: 5000, ResponseTokens: 10000, ArrivalRateQPS: 3, DecodeTokensPerSec: 1, ServerCount: 2},
		{ContextTokens: 2000, PromptTokens: 150, ResponseTokens: 200, ArrivalRateQPS: 5, CacheHitRate: 0.4, CacheSavingsFraction: 0.8, BatchSize: 4, PricePer1KInput: 0.5, PricePer1KOutput: 1.5, PrefillTokensPerSec: 20000, DecodeTokensPerSec: 150, OneWayNetworkMS: 50, ServerCount: 6, BurstFactor: 1.5},
	}

	for _, p := range inputs {
		want := Evaluate(p)
		assert.Equal(t, want, memo.Evaluate(p), "miss")
		assert.Equal(t, want, memo.Evaluate(p), "hit")
	}
}

func TestMemo_CachesByNormalizedKey(t *testing.T) {
	counter := &countingEvaluator{}
	memo, err := NewMemo(16, WithNext(counter))
	require.NoError(t, err)

	p := pocParams()
	memo.Evaluate(p)
	memo.Evaluate(p)
	assert.Equal(t, int64(1), counter.calls.Load())

	// Batch 0 and batch 1 normalize to the same tuple
	a := p
	a.BatchSize = 0
	b := p
	b.BatchSize = 1
	ra := memo.Evaluate(a)
	rb := memo.Evaluate(b)
	assert.Equal(t, int64(2), counter.calls.Load())

	assert.Equal(t, a, ra.Inputs, "hit still echoes the caller's inputs")
	assert.Equal(t, b, rb.Inputs)
	assert.Equal(t, ra.Cost, rb.Cost)

	stats := memo.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, 2, stats.Size)
}

func TestMemo_EvictsLeastRecentlyUsed(t *testing.T) {
	counter := &countingEvaluator{}
	memo, err := NewMemo(2, WithNext(counter))
	require.NoError(t, err)

	p1 := pocParams()
	p2 := pocParams()
	p2.BatchSize = 4
	p3 := pocParams()
	p3.BatchSize = 8

	memo.Evaluate(p1)
	memo.Evaluate(p2)
	memo.Evaluate(p1) // p2 is now least recently used
	memo.Evaluate(p3) // evicts p2
	assert.Equal(t, int64(3), counter.calls.Load())

	memo.Evaluate(p1)
	assert.Equal(t, int64(3), counter.calls.Load(), "p1 survived")

	memo.Evaluate(p2)
	assert.Equal(t, int64(4), counter.calls.Load(), "p2 was evicted")
	assert.Equal(t, 2, memo.Stats().Size)
}

func TestMemo_PurgeDoesNotChangeResults(t *testing.T) {
	memo, err := NewMemo(8)
	require.NoError(t, err)

	p := pocParams()
	before := memo.Evaluate(p)
	memo.Purge()
	assert.Zero(t, memo.Stats().Size)
	assert.Equal(t, before, memo.Evaluate(p))
}

func TestMemo_CallerMutationDoesNotLeakIntoCache(t *testing.T) {
	memo, err := NewMemo(8)
	require.NoError(t, err)

	p := pocParams()
	first := memo.Evaluate(p)
	require.NotEmpty(t, first.Recommendations)
	first.Recommendations[0] = "tampered"

	second := memo.Evaluate(p)
	assert.NotEqual(t, "tampered", second.Recommendations[0])
}

func TestMemo_ConcurrentUse(t *testing.T) {
	memo, err := NewMemo(64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := 1; b <= 32; b++ {
				p := pocParams()
				p.BatchSize = b
				assert.Equal(t, Evaluate(p), memo.Evaluate(p))
			}
		}()
	}
	wg.Wait()

	stats := memo.Stats()
	assert.Equal(t, uint64(8*32), stats.Hits+stats.Misses)
	assert.Equal(t, 32, stats.Size)
}
