package cmd

import (
	"github.com/genai-cost-planner/genai-cost-planner/internal/service/optimizer"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// Response shapes returned by the planner server. Result and Candidate come
// straight from the shared models so null percentiles decode back to +Inf.

// RecommendResponse is the response from POST /api/v1/recommend
type RecommendResponse struct {
	Recommendations []string       `json:"recommendations"`
	Targets         models.Targets `json:"targets"`
	Result          models.Result  `json:"result"`
}

// OptimizeResponse is the response from POST /api/v1/optimize
type OptimizeResponse struct {
	RunID     string               `json:"run_id,omitempty"`
	BaseCost  float64              `json:"base_cost"`
	Count     int                  `json:"count"`
	Evaluated int                  `json:"evaluated"`
	Targets   models.Targets       `json:"targets"`
	Best      *optimizer.Candidate `json:"best"`
}

// SweepPoint is one row of a sweep. Percentiles are nil when unstable.
type SweepPoint struct {
	X            float64  `json:"x"`
	CostPerQuery float64  `json:"cost_per_query"`
	P50Seconds   *float64 `json:"p50_s"`
	P95Seconds   *float64 `json:"p95_s"`
	Rho          float64  `json:"rho"`
	Stable       bool     `json:"stable"`
}

// SweepResponse is the response from the sweep endpoints
type SweepResponse struct {
	Axis   string       `json:"axis"`
	Points []SweepPoint `json:"points"`
}

type targetedRequest struct {
	Params         models.Params `json:"params"`
	SLOP95         *float64      `json:"slo_p95,omitempty"`
	UtilizationCap *float64      `json:"utilization_cap,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
