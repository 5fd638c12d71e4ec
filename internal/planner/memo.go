package planner

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// DefaultMemoSize is enough for interactive sweeps plus a full optimizer grid
const DefaultMemoSize = 8192

// Memo is an Evaluator backed by a bounded LRU cache keyed by the normalized
// parameter tuple. It is safe for concurrent use. Caching never changes a
// result, only how fast it comes back.
type Memo struct {
	next   Evaluator
	cache  *lru.Cache[models.ParamsKey, models.Result]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// MemoOption configures a Memo
type MemoOption func(*Memo)

// WithNext sets the evaluator called on a miss (Direct by default)
func WithNext(e Evaluator) MemoOption {
	return func(m *Memo) {
		m.next = e
	}
}

// NewMemo creates a memoizing evaluator holding at most size results.
func NewMemo(size int, opts ...MemoOption) (*Memo, error) {
	if size <= 0 {
		return nil, fmt.Errorf("memo size must be positive, got %d", size)
	}
	cache, err := lru.New[models.ParamsKey, models.Result](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memo cache: %w", err)
	}

	m := &Memo{
		next:  Direct,
		cache: cache,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Evaluate returns the cached Result for p, computing it on a miss.
func (m *Memo) Evaluate(p models.Params) models.Result {
	key := p.Key()
	if res, ok := m.cache.Get(key); ok {
		m.hits.Add(1)
		return withInputs(res, p)
	}
	m.misses.Add(1)

	res := m.next.Evaluate(p)
	m.cache.Add(key, res)
	return withInputs(res, p)
}

// withInputs echoes the caller's own Params and hands out a private copy of
// the recommendations slice so cached entries stay untouched.
func withInputs(res models.Result, p models.Params) models.Result {
	res.Inputs = p
	res.Recommendations = append([]string{}, res.Recommendations...)
	return res
}

// MemoStats is a point-in-time view of cache effectiveness
type MemoStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// Stats returns hit/miss counters and the current number of entries
func (m *Memo) Stats() MemoStats {
	return MemoStats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Size:   m.cache.Len(),
	}
}

// Purge drops every cached result
func (m *Memo) Purge() {
	m.cache.Purge()
}

// CacheHits, CacheMisses and CacheLen let the metrics package read the
// counters without importing planner.
func (m *Memo) CacheHits() uint64   { return m.hits.Load() }
func (m *Memo) CacheMisses() uint64 { return m.misses.Load() }
func (m *Memo) CacheLen() int       { return m.cache.Len() }
