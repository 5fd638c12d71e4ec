// Package queueing holds the closed-form steady-state queue formulas used to
// turn a per-query service time and an arrival rate into utilization,
// stability and latency percentiles.
package queueing

import (
	"math"
)

const (
	// UtilizationCap is the utilization at which the safe arrival rate is quoted
	UtilizationCap = 0.70

	// MaxDisplayRho keeps the reported utilization strictly below 1
	MaxDisplayRho = 0.999999

	// ErlangCP95Multiplier scales the mean Erlang-C queueing delay into a p95
	// figure. It is a coarse heuristic, not a percentile of the delay
	// distribution.
	ErlangCP95Multiplier = 3.0

	minServiceTime = 1e-9
	minRateGap     = 1e-9
	minTailProb    = 1e-12
	minBlocking    = 1e-300
)

// Metrics is the outcome of analyzing one queue
type Metrics struct {
	Mu              float64 // per-server service rate (queries/sec)
	TotalCapacity   float64 // servers × Mu
	Rho             float64 // utilization, clamped to [0, MaxDisplayRho]
	Stable          bool
	WaitProbability float64 // Erlang-C P(wait); 0 for a single server
	MeanQueueDelay  float64 // Erlang-C W_q; 0 for a single server
	P50             float64 // seconds, +Inf when unstable
	P95             float64 // seconds, +Inf when unstable
	SafeArrivalRate float64 // UtilizationCap × TotalCapacity
}

// ServiceRate returns μ = 1/serviceTime with serviceTime floored to avoid
// division by zero.
func ServiceRate(serviceTime float64) float64 {
	return 1.0 / math.Max(minServiceTime, serviceTime)
}

// Analyze evaluates a queue with the given per-query service time, offered
// arrival rate λ and server count. One server uses M/M/1, more use Erlang-C.
func Analyze(serviceTime, lambda float64, servers int) Metrics {
	if servers < 1 {
		servers = 1
	}
	mu := ServiceRate(serviceTime)
	if servers == 1 {
		return mm1(serviceTime, lambda, mu)
	}
	return mmk(serviceTime, lambda, mu, servers)
}

func mm1(serviceTime, lambda, mu float64) Metrics {
	m := Metrics{
		Mu:              mu,
		TotalCapacity:   mu,
		Rho:             clampRho(lambda / mu),
		Stable:          lambda < mu,
		SafeArrivalRate: mu * UtilizationCap,
	}
	m.P50 = serviceTime + MM1Wait(0.50, lambda, mu)
	m.P95 = serviceTime + MM1Wait(0.95, lambda, mu)
	return m
}

// MM1Wait is the exponential-tail waiting time at probability p for an M/M/1
// queue: −ln(1−p)/(μ−λ). It is +Inf when λ ≥ μ.
func MM1Wait(p, lambda, mu float64) float64 {
	if lambda >= mu {
		return math.Inf(1)
	}
	return -math.Log(math.Max(minTailProb, 1.0-p)) / math.Max(minRateGap, mu-lambda)
}

func mmk(serviceTime, lambda, mu float64, servers int) Metrics {
	k := float64(servers)
	capacity := k * mu
	rho := lambda / capacity

	m := Metrics{
		Mu:              mu,
		TotalCapacity:   capacity,
		Rho:             clampRho(rho),
		SafeArrivalRate: capacity * UtilizationCap,
	}
	if rho >= 1 {
		m.P50 = math.Inf(1)
		m.P95 = math.Inf(1)
		m.MeanQueueDelay = math.Inf(1)
		m.WaitProbability = 1
		return m
	}

	m.Stable = true
	m.WaitProbability = ErlangC(servers, lambda/mu)
	m.MeanQueueDelay = m.WaitProbability / (capacity - lambda)
	m.P50 = serviceTime + m.MeanQueueDelay
	m.P95 = serviceTime + ErlangCP95Multiplier*m.MeanQueueDelay
	return m
}

// ErlangC returns the probability that an arrival has to wait in an M/M/k
// queue with offered load a = λ/μ. The caller guarantees a < k.
//
// It runs the Erlang-B recurrence B(n) = a·B(n−1)/(n + a·B(n−1)), which
// stays in [0, 1] for any k, then converts: C = k·B/(k − a·(1−B)).
func ErlangC(servers int, a float64) float64 {
	if a <= 0 {
		return 0
	}
	k := float64(servers)

	b := 1.0
	for n := 1; n <= servers; n++ {
		b = a * b / (float64(n) + a*b)
		// Past n > a, B only shrinks, so the remaining steps are all ~0
		if b < minBlocking && float64(n) > a {
			return 0
		}
	}

	c := k * b / (k - a*(1-b))
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	return math.Min(c, 1)
}

func clampRho(rho float64) float64 {
	if math.IsNaN(rho) || rho < 0 {
		return 0
	}
	return math.Min(rho, MaxDisplayRho)
}
