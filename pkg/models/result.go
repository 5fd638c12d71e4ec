package models

import (
	"encoding/json"
	"math"
)

// ResultVersion tags the Result wire layout. Bump it when a JSON field is
// renamed or moved between groups.
const ResultVersion = "planner-core-1.2"

// Result is the full evaluation of one Params.
type Result struct {
	Inputs          Params   `json:"inputs"`
	Tokens          Tokens   `json:"tokens"`
	Cost            Cost     `json:"cost"`
	Latency         Latency  `json:"latency"`
	Recommendations []string `json:"recommendations"`
	Version         string   `json:"version"`
}

// Tokens holds per-query token accounting
type Tokens struct {
	EffectiveContext         float64 `json:"effective_context"`           // Context after cache savings
	EffectiveContextPerBatch float64 `json:"effective_context_per_batch"` // Context amortized over the batch
	InputPerQuery            float64 `json:"input_tokens_per_query"`
	OutputPerQuery           float64 `json:"output_tokens_per_query"`
}

// Cost holds monetary cost in the pricing currency (USD)
type Cost struct {
	InputPerQuery  float64 `json:"input_per_query"`
	OutputPerQuery float64 `json:"output_per_query"`
	PerQuery       float64 `json:"per_query"`
	Per1K          float64 `json:"per_1k"`
	PerDay         float64 `json:"per_day"`   // Billed on the un-burst arrival rate
	PerMonth       float64 `json:"per_month"` // 30 days
}

// Latency holds queueing results. P50 and P95 are +Inf when the queue is
// unstable; they travel as JSON null.
type Latency struct {
	PrefillSeconds      float64 `json:"prefill_s"`
	DecodeSeconds       float64 `json:"decode_s"`
	ServiceBaseSeconds  float64 `json:"service_base_s"`
	P50Seconds          float64 `json:"p50_s"`
	P95Seconds          float64 `json:"p95_s"`
	Rho                 float64 `json:"rho"`    // Utilization, clamped below 1 for display
	MuQPS               float64 `json:"mu_qps"` // Per-server service rate
	TotalCapacityQPS    float64 `json:"total_capacity_qps"`
	Stable              bool    `json:"stable"`
	SafeQPS             float64 `json:"safe_qps"`         // Arrival rate at the 70% utilization cap
	WaitProbability     float64 `json:"wait_probability"` // Erlang-C P(wait); 0 for a single server
	Servers             int     `json:"servers"`
	EffectiveArrivalQPS float64 `json:"effective_arrival_qps"` // λ × burst
}

type latencyWire struct {
	PrefillSeconds      float64  `json:"prefill_s"`
	DecodeSeconds       float64  `json:"decode_s"`
	ServiceBaseSeconds  float64  `json:"service_base_s"`
	P50Seconds          *float64 `json:"p50_s"`
	P95Seconds          *float64 `json:"p95_s"`
	Rho                 float64  `json:"rho"`
	MuQPS               float64  `json:"mu_qps"`
	TotalCapacityQPS    float64  `json:"total_capacity_qps"`
	Stable              bool     `json:"stable"`
	SafeQPS             float64  `json:"safe_qps"`
	WaitProbability     float64  `json:"wait_probability"`
	Servers             int      `json:"servers"`
	EffectiveArrivalQPS float64  `json:"effective_arrival_qps"`
}

// MarshalJSON encodes infinite percentiles as null.
func (l Latency) MarshalJSON() ([]byte, error) {
	return json.Marshal(latencyWire{
		PrefillSeconds:      l.PrefillSeconds,
		DecodeSeconds:       l.DecodeSeconds,
		ServiceBaseSeconds:  l.ServiceBaseSeconds,
		P50Seconds:          finiteOrNil(l.P50Seconds),
		P95Seconds:          finiteOrNil(l.P95Seconds),
		Rho:                 l.Rho,
		MuQPS:               l.MuQPS,
		TotalCapacityQPS:    l.TotalCapacityQPS,
		Stable:              l.Stable,
		SafeQPS:             l.SafeQPS,
		WaitProbability:     l.WaitProbability,
		Servers:             l.Servers,
		EffectiveArrivalQPS: l.EffectiveArrivalQPS,
	})
}

// UnmarshalJSON restores null percentiles as +Inf.
func (l *Latency) UnmarshalJSON(data []byte) error {
	var w latencyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*l = Latency{
		PrefillSeconds:      w.PrefillSeconds,
		DecodeSeconds:       w.DecodeSeconds,
		ServiceBaseSeconds:  w.ServiceBaseSeconds,
		P50Seconds:          nilToInf(w.P50Seconds),
		P95Seconds:          nilToInf(w.P95Seconds),
		Rho:                 w.Rho,
		MuQPS:               w.MuQPS,
		TotalCapacityQPS:    w.TotalCapacityQPS,
		Stable:              w.Stable,
		SafeQPS:             w.SafeQPS,
		WaitProbability:     w.WaitProbability,
		Servers:             w.Servers,
		EffectiveArrivalQPS: w.EffectiveArrivalQPS,
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func nilToInf(v *float64) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return *v
}

// CapacityPlan is the scale-out estimate for a configuration
type CapacityPlan struct {
	Servers             int     `json:"servers"`
	MaxQPSTotal         float64 `json:"max_qps_total"`
	SafeQPSTotal        float64 `json:"safe_qps_total"`
	SafeQPSPerInstance  float64 `json:"safe_qps_per_instance"`
	EffectiveArrivalQPS float64 `json:"effective_arrival_qps"`
	RequiredInstances   int     `json:"required_instances"`
	ScaleOutNeeded      bool    `json:"scale_out_needed"`
}
