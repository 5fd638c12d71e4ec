// Package presets holds the built-in POC, Pilot and Prod workload bundles.
package presets

import (
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// Built-in preset names
const (
	POC   = "POC"
	Pilot = "Pilot"
	Prod  = "Prod"
)

// Names lists the built-ins in rollout order
func Names() []string {
	return []string{POC, Pilot, Prod}
}

// BuiltIn returns the named built-in preset
func BuiltIn(name string) (models.Params, bool) {
	switch name {
	case POC:
		return withDefaultPricing(models.Params{
			ContextTokens:        1000,
			PromptTokens:         100,
			ResponseTokens:       150,
			ArrivalRateQPS:       1.0,
			CacheHitRate:         0.2,
			CacheSavingsFraction: 0.8,
			BatchSize:            2,
			OneWayNetworkMS:      50,
		}), true
	case Pilot:
		return withDefaultPricing(models.Params{
			ContextTokens:        2000,
			PromptTokens:         150,
			ResponseTokens:       200,
			ArrivalRateQPS:       5.0,
			CacheHitRate:         0.4,
			CacheSavingsFraction: 0.8,
			BatchSize:            4,
			OneWayNetworkMS:      50,
		}), true
	case Prod:
		return withDefaultPricing(models.Params{
			ContextTokens:        3000,
			PromptTokens:         120,
			ResponseTokens:       180,
			ArrivalRateQPS:       20.0,
			CacheHitRate:         0.6,
			CacheSavingsFraction: 0.9,
			BatchSize:            8,
			OneWayNetworkMS:      40,
		}), true
	}
	return models.Params{}, false
}

// All returns every built-in as a Preset, in rollout order
func All() []models.Preset {
	out := make([]models.Preset, 0, 3)
	for _, name := range Names() {
		p, _ := BuiltIn(name)
		out = append(out, models.Preset{Name: name, Params: p, BuiltIn: true})
	}
	return out
}

// IsBuiltIn reports whether name is one of the shipped presets
func IsBuiltIn(name string) bool {
	_, ok := BuiltIn(name)
	return ok
}

func withDefaultPricing(p models.Params) models.Params {
	p = models.DefaultPricingProfile().Apply(p)
	p.ServerCount = 1
	p.BurstFactor = 1.0
	return p
}
