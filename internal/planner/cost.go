package planner

import "github.com/genai-cost-planner/genai-cost-planner/pkg/models"

const (
	tokensPerPriceUnit = 1000.0
	secondsPerDay      = 86400.0
	daysPerMonth       = 30.0
)

// PriceTokens converts token counts into cost with linear per-1k pricing.
// Daily and monthly figures use the un-burst arrival rate: capacity is
// provisioned for bursts but billing follows actual volume.
func PriceTokens(p models.Params, t models.Tokens) models.Cost {
	in := t.InputPerQuery / tokensPerPriceUnit * p.PricePer1KInput
	out := t.OutputPerQuery / tokensPerPriceUnit * p.PricePer1KOutput
	perQuery := in + out
	perDay := perQuery * p.ArrivalRateQPS * secondsPerDay
	return models.Cost{
		InputPerQuery:  in,
		OutputPerQuery: out,
		PerQuery:       perQuery,
		Per1K:          perQuery * 1000,
		PerDay:         perDay,
		PerMonth:       perDay * daysPerMonth,
	}
}
