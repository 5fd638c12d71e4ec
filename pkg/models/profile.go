package models

import "time"

// DefaultProfileName is the pricing profile used when a lookup misses
const DefaultProfileName = "default"

// PricingProfile is a named bundle of pricing and throughput figures for a
// model/hardware combination
type PricingProfile struct {
	Name                string    `json:"name"`
	PricePer1KInput     float64   `json:"price_per_1k_input"`
	PricePer1KOutput    float64   `json:"price_per_1k_output"`
	PrefillTokensPerSec float64   `json:"prefill_tokens_per_sec"`
	DecodeTokensPerSec  float64   `json:"decode_tokens_per_sec"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultPricingProfile returns the built-in fallback profile
func DefaultPricingProfile() PricingProfile {
	return PricingProfile{
		Name:                DefaultProfileName,
		PricePer1KInput:     0.5,
		PricePer1KOutput:    1.5,
		PrefillTokensPerSec: 20000,
		DecodeTokensPerSec:  150,
	}
}

// Apply returns p with pricing and throughput taken from the profile.
// Workload fields are kept as they are.
func (pp PricingProfile) Apply(p Params) Params {
	p.PricePer1KInput = pp.PricePer1KInput
	p.PricePer1KOutput = pp.PricePer1KOutput
	p.PrefillTokensPerSec = pp.PrefillTokensPerSec
	p.DecodeTokensPerSec = pp.DecodeTokensPerSec
	return p
}

// Preset is a named Params bundle
type Preset struct {
	Name      string    `json:"name"`
	Params    Params    `json:"params"`
	BuiltIn   bool      `json:"built_in"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Targets are the service objectives used by the recommender and optimizer
type Targets struct {
	SLOP95         float64 `json:"slo_p95"`         // Seconds
	UtilizationCap float64 `json:"utilization_cap"` // 0-1
}

// DefaultTargets mirrors the defaults exposed by the API
func DefaultTargets() Targets {
	return Targets{SLOP95: 2.0, UtilizationCap: 0.70}
}

// OptimizationRun is a persisted summary of one optimizer invocation
type OptimizationRun struct {
	ID            string    `json:"id"`
	Baseline      Params    `json:"baseline"`
	Targets       Targets   `json:"targets"`
	BaseCost      float64   `json:"base_cost"`
	Found         bool      `json:"found"`
	Best          *Params   `json:"best,omitempty"`
	BestCost      float64   `json:"best_cost"`
	BestP95       float64   `json:"best_p95"`
	FeasibleCount int       `json:"feasible_count"`
	Evaluated     int       `json:"evaluated"`
	CreatedAt     time.Time `json:"created_at"`
}

// APIKey is a stored API credential. The secret itself is never stored.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}
