// Package planner evaluates a workload configuration into token, cost and
// latency figures. Evaluate is pure and total: it never fails, and every
// out-of-range input is clamped instead of rejected.
package planner

import (
	"math"

	"github.com/genai-cost-planner/genai-cost-planner/internal/queueing"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// Thresholds for the advisories attached to every Result
const (
	highUtilization     = 0.70
	largeContextTokens  = 2000
	lowCacheHitRate     = 0.5
	slowP95Seconds      = 2.0
	millisecondsPerSec  = 1000.0
	networkLegsPerQuery = 2.0
)

// Evaluator turns Params into a Result
type Evaluator interface {
	Evaluate(p models.Params) models.Result
}

// Func adapts a plain function to Evaluator
type Func func(p models.Params) models.Result

// Evaluate calls f(p)
func (f Func) Evaluate(p models.Params) models.Result {
	return f(p)
}

// Direct evaluates without caching
var Direct Evaluator = Func(Evaluate)

// Evaluate computes the full Result for p.
func Evaluate(p models.Params) models.Result {
	n := p.Normalize()

	tokens := AccountTokens(n)
	cost := PriceTokens(n, tokens)

	prefill := tokens.InputPerQuery / n.PrefillTokensPerSec
	decode := tokens.OutputPerQuery / n.DecodeTokensPerSec
	network := networkLegsPerQuery * n.OneWayNetworkMS / millisecondsPerSec
	service := prefill + decode + network

	lambda := n.ArrivalRateQPS * n.BurstFactor
	q := queueing.Analyze(service, lambda, n.ServerCount)

	latency := models.Latency{
		PrefillSeconds:      prefill,
		DecodeSeconds:       decode,
		ServiceBaseSeconds:  service,
		P50Seconds:          q.P50,
		P95Seconds:          q.P95,
		Rho:                 q.Rho,
		MuQPS:               q.Mu,
		TotalCapacityQPS:    q.TotalCapacity,
		Stable:              q.Stable,
		SafeQPS:             q.SafeArrivalRate,
		WaitProbability:     q.WaitProbability,
		Servers:             n.ServerCount,
		EffectiveArrivalQPS: lambda,
	}

	return models.Result{
		Inputs:          p,
		Tokens:          tokens,
		Cost:            cost,
		Latency:         latency,
		Recommendations: advisories(n, cost, latency),
		Version:         models.ResultVersion,
	}
}

func advisories(n models.Params, cost models.Cost, l models.Latency) []string {
	recs := []string{}
	if !l.Stable {
		recs = append(recs, "Queue is unstable (arrival rate at or above capacity): lower QPS, scale out, or raise throughput.")
	}
	if l.Stable && l.Rho > highUtilization {
		recs = append(recs, "High utilization (rho > 0.70): batch shared context, scale out, or lower QPS.")
	}
	if n.ContextTokens > largeContextTokens && n.CacheHitRate < lowCacheHitRate {
		recs = append(recs, "Input cost is dominant: prune context or improve cache hit rate and savings.")
	}
	if !math.IsInf(l.P95Seconds, 1) && l.P95Seconds > slowP95Seconds {
		recs = append(recs, "p95 exceeds 2s: shorten responses or use a faster decode model.")
	}
	if cost.OutputPerQuery > cost.InputPerQuery {
		recs = append(recs, "Output cost dominates: shorten responses or return a more compact format.")
	}
	return recs
}
