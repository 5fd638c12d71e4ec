package queueing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceRate(t *testing.T) {
	assert.InDelta(t, 2.0, ServiceRate(0.5), 1e-12)
	assert.InDelta(t, 1e9, ServiceRate(0), 1e-3, "zero service time is floored")
	assert.InDelta(t, 1e9, ServiceRate(-1), 1e-3)
}

func TestAnalyze_MM1Stable(t *testing.T) {
	// service 0.5s → μ = 2 qps, λ = 1 qps
	m := Analyze(0.5, 1.0, 1)

	assert.True(t, m.Stable)
	assert.InDelta(t, 2.0, m.Mu, 1e-12)
	assert.InDelta(t, 2.0, m.TotalCapacity, 1e-12)
	assert.InDelta(t, 0.5, m.Rho, 1e-12)
	assert.InDelta(t, 1.4, m.SafeArrivalRate, 1e-12)
	assert.Zero(t, m.WaitProbability)

	assert.InDelta(t, 0.5+math.Ln2/1.0, m.P50, 1e-12)
	assert.InDelta(t, 0.5-math.Log(0.05)/1.0, m.P95, 1e-12)
	assert.LessOrEqual(t, m.P50, m.P95)
}

func TestAnalyze_MM1ZeroArrival(t *testing.T) {
	m := Analyze(0.25, 0, 1)

	assert.True(t, m.Stable)
	assert.Zero(t, m.Rho)
	// Exponential tail still applies with λ = 0
	assert.InDelta(t, 0.25+math.Ln2/4.0, m.P50, 1e-12)
}

func TestAnalyze_MM1Unstable(t *testing.T) {
	tests := []struct {
		name   string
		lambda float64
	}{
		{"at capacity", 2.0},
		{"above capacity", 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Analyze(0.5, tt.lambda, 1)
			assert.False(t, m.Stable)
			assert.True(t, math.IsInf(m.P50, 1))
			assert.True(t, math.IsInf(m.P95, 1))
			assert.Less(t, m.Rho, 1.0)
			assert.InDelta(t, MaxDisplayRho, m.Rho, 1e-12)
			assert.InDelta(t, 1.4, m.SafeArrivalRate, 1e-12)
		})
	}
}

func TestAnalyze_ServerCountFloor(t *testing.T) {
	assert.Equal(t, Analyze(0.5, 1, 1), Analyze(0.5, 1, 0))
	assert.Equal(t, Analyze(0.5, 1, 1), Analyze(0.5, 1, -3))
}

func TestErlangC_KnownValues(t *testing.T) {
	// k=1 reduces to ρ
	assert.InDelta(t, 0.6, ErlangC(1, 0.6), 1e-12)

	// k=2, a=1: C = (1/2·2)/(1+1+1) = 1/3
	assert.InDelta(t, 1.0/3.0, ErlangC(2, 1.0), 1e-12)

	// Textbook value: k=3, a=2 → 4/9
	assert.InDelta(t, 4.0/9.0, ErlangC(3, 2.0), 1e-12)

	assert.Zero(t, ErlangC(4, 0))
}

func TestAnalyze_ErlangC(t *testing.T) {
	// μ = 1 qps per server, 2 servers, λ = 1 → a = 1, P_wait = 1/3
	m := Analyze(1.0, 1.0, 2)

	assert.True(t, m.Stable)
	assert.InDelta(t, 2.0, m.TotalCapacity, 1e-12)
	assert.InDelta(t, 0.5, m.Rho, 1e-12)
	assert.InDelta(t, 1.0/3.0, m.WaitProbability, 1e-12)

	wq := (1.0 / 3.0) / (2.0 - 1.0)
	assert.InDelta(t, wq, m.MeanQueueDelay, 1e-12)
	assert.InDelta(t, 1.0+wq, m.P50, 1e-12)
	assert.InDelta(t, 1.0+3*wq, m.P95, 1e-12)
	assert.InDelta(t, 1.4, m.SafeArrivalRate, 1e-12)
}

func TestAnalyze_ErlangCUnstable(t *testing.T) {
	m := Analyze(1.0, 4.0, 4)

	assert.False(t, m.Stable)
	assert.True(t, math.IsInf(m.P50, 1))
	assert.True(t, math.IsInf(m.P95, 1))
	assert.InDelta(t, MaxDisplayRho, m.Rho, 1e-12)
}

func TestAnalyze_MoreServersLowerLatency(t *testing.T) {
	prev := math.Inf(1)
	for k := 2; k <= 8; k++ {
		m := Analyze(1.0, 1.5, k)
		assert.True(t, m.Stable)
		assert.LessOrEqual(t, m.P95, prev, "k=%d", k)
		prev = m.P95
	}
}

func TestMM1Wait_Monotonic(t *testing.T) {
	assert.Less(t, MM1Wait(0.5, 1, 2), MM1Wait(0.95, 1, 2))
	assert.Less(t, MM1Wait(0.95, 0.5, 2), MM1Wait(0.95, 1.5, 2))
	assert.True(t, math.IsInf(MM1Wait(0.5, 2, 2), 1))
}

func TestErlangC_LargeServerCounts(t *testing.T) {
	// a^k/k! overflows float64 long before k = 1000
	for _, a := range []float64{1, 800, 900, 999} {
		c := ErlangC(1000, a)
		assert.False(t, math.IsNaN(c), "a=%v", a)
		assert.GreaterOrEqual(t, c, 0.0, "a=%v", a)
		assert.LessOrEqual(t, c, 1.0, "a=%v", a)
	}
	assert.Less(t, ErlangC(1000, 800), ErlangC(1000, 999))
}

func TestErlangC_HugeServerCountLightLoad(t *testing.T) {
	// Finishes after a few hundred steps instead of iterating every server
	assert.Zero(t, ErlangC(2_000_000_000, 5))

	m := Analyze(1.0, 5, 2_000_000_000)
	assert.True(t, m.Stable)
	assert.InDelta(t, 1.0, m.P50, 1e-12)
	assert.InDelta(t, 1.0, m.P95, 1e-12)
}

func TestAnalyze_StableMultiServerIsFinite(t *testing.T) {
	const serviceTime = 1.125 // μ ≈ 0.888 qps

	for _, k := range []int{2, 50, 500, 1000, 5000} {
		for _, rho := range []float64{0.5, 0.9008, 0.95} {
			lambda := rho * float64(k) / serviceTime
			m := Analyze(serviceTime, lambda, k)

			assert.True(t, m.Stable, "k=%d rho=%v", k, rho)
			assert.False(t, math.IsNaN(m.P50) || math.IsInf(m.P50, 0), "k=%d rho=%v p50=%v", k, rho, m.P50)
			assert.False(t, math.IsNaN(m.P95) || math.IsInf(m.P95, 0), "k=%d rho=%v p95=%v", k, rho, m.P95)
			assert.LessOrEqual(t, m.P50, m.P95, "k=%d rho=%v", k, rho)
			assert.GreaterOrEqual(t, m.WaitProbability, 0.0, "k=%d rho=%v", k, rho)
			assert.LessOrEqual(t, m.WaitProbability, 1.0, "k=%d rho=%v", k, rho)
		}
	}
}
