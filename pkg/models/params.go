package models

import "math"

// MaxServerCount bounds server_count on API requests. Erlang-C work grows
// with the server count. Keep the Params binding tag in sync.
const MaxServerCount = 100000

// MinThroughput is the floor applied to prefill/decode rates so service
// time never divides by zero.
const MinThroughput = 1e-9

// Params describes one workload + infrastructure configuration.
// It is a value type: copy it, never mutate a shared one.
type Params struct {
	ContextTokens        float64 `json:"context_tokens" yaml:"context_tokens"`                  // Shared context per query
	PromptTokens         float64 `json:"prompt_tokens" yaml:"prompt_tokens"`                    // Per-query prompt, never amortized
	ResponseTokens       float64 `json:"response_tokens" yaml:"response_tokens"`                // Generated tokens per query
	ArrivalRateQPS       float64 `json:"arrival_rate_qps" yaml:"arrival_rate_qps"`              // Sustained arrival rate (λ before burst)
	CacheHitRate         float64 `json:"cache_hit_rate" yaml:"cache_hit_rate"`                  // 0-1
	CacheSavingsFraction float64 `json:"cache_savings_fraction" yaml:"cache_savings_fraction"`  // 0-1, share of context cost avoided on a hit
	BatchSize            int     `json:"batch_size" yaml:"batch_size"`                          // Queries sharing one context
	PricePer1KInput      float64 `json:"price_per_1k_input" yaml:"price_per_1k_input"`          // USD per 1000 input tokens
	PricePer1KOutput     float64 `json:"price_per_1k_output" yaml:"price_per_1k_output"`        // USD per 1000 output tokens
	PrefillTokensPerSec  float64 `json:"prefill_tokens_per_sec" yaml:"prefill_tokens_per_sec"`  // Prefill throughput per server
	DecodeTokensPerSec   float64 `json:"decode_tokens_per_sec" yaml:"decode_tokens_per_sec"`    // Decode throughput per server
	OneWayNetworkMS      float64 `json:"one_way_network_ms" yaml:"one_way_network_ms"`          // Added twice per query (round trip)
	ServerCount          int     `json:"server_count" yaml:"server_count" binding:"lte=100000"` // 0 means the default of 1; at most MaxServerCount over the API
	BurstFactor          float64 `json:"burst_factor" yaml:"burst_factor"`                      // 0 means the default of 1.0
}

// ParamsKey is the comparable, normalized form of Params used as a cache key.
type ParamsKey struct {
	ContextTokens        float64
	PromptTokens         float64
	ResponseTokens       float64
	ArrivalRateQPS       float64
	CacheHitRate         float64
	CacheSavingsFraction float64
	BatchSize            int
	PricePer1KInput      float64
	PricePer1KOutput     float64
	PrefillTokensPerSec  float64
	DecodeTokensPerSec   float64
	OneWayNetworkMS      float64
	ServerCount          int
	BurstFactor          float64
}

// Normalize returns a sanitized copy of p. Out-of-range values are clamped
// rather than rejected; NaN is replaced by the field's lower bound.
func (p Params) Normalize() Params {
	return Params{
		ContextTokens:        atLeast(p.ContextTokens, 0),
		PromptTokens:         atLeast(p.PromptTokens, 0),
		ResponseTokens:       atLeast(p.ResponseTokens, 0),
		ArrivalRateQPS:       atLeast(p.ArrivalRateQPS, 0),
		CacheHitRate:         unitInterval(p.CacheHitRate),
		CacheSavingsFraction: unitInterval(p.CacheSavingsFraction),
		BatchSize:            max(1, p.BatchSize),
		PricePer1KInput:      atLeast(p.PricePer1KInput, 0),
		PricePer1KOutput:     atLeast(p.PricePer1KOutput, 0),
		PrefillTokensPerSec:  atLeast(p.PrefillTokensPerSec, MinThroughput),
		DecodeTokensPerSec:   atLeast(p.DecodeTokensPerSec, MinThroughput),
		OneWayNetworkMS:      atLeast(p.OneWayNetworkMS, 0),
		ServerCount:          max(1, p.ServerCount),
		BurstFactor:          atLeast(p.BurstFactor, 1),
	}
}

// Key returns the normalized tuple identifying p. Two Params with equal keys
// always evaluate to equal results.
func (p Params) Key() ParamsKey {
	n := p.Normalize()
	return ParamsKey{
		ContextTokens:        n.ContextTokens,
		PromptTokens:         n.PromptTokens,
		ResponseTokens:       n.ResponseTokens,
		ArrivalRateQPS:       n.ArrivalRateQPS,
		CacheHitRate:         n.CacheHitRate,
		CacheSavingsFraction: n.CacheSavingsFraction,
		BatchSize:            n.BatchSize,
		PricePer1KInput:      n.PricePer1KInput,
		PricePer1KOutput:     n.PricePer1KOutput,
		PrefillTokensPerSec:  n.PrefillTokensPerSec,
		DecodeTokensPerSec:   n.DecodeTokensPerSec,
		OneWayNetworkMS:      n.OneWayNetworkMS,
		ServerCount:          n.ServerCount,
		BurstFactor:          n.BurstFactor,
	}
}

// EffectiveArrivalRate is the burst-adjusted λ used for latency.
func (p Params) EffectiveArrivalRate() float64 {
	n := p.Normalize()
	return n.ArrivalRateQPS * n.BurstFactor
}

func atLeast(x, lo float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	return x
}

func unitInterval(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
