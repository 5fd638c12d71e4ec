package planner

import (
	"math"

	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// PlanCapacity estimates how many servers keep the burst arrival rate under
// the safe utilization cap.
func PlanCapacity(e Evaluator, p models.Params) models.CapacityPlan {
	n := p.Normalize()
	res := e.Evaluate(p)

	perInstance := res.Latency.SafeQPS / float64(n.ServerCount)
	lambda := n.ArrivalRateQPS * n.BurstFactor
	required := max(1, int(math.Ceil(lambda/math.Max(1e-9, perInstance))))

	return models.CapacityPlan{
		Servers:             n.ServerCount,
		MaxQPSTotal:         res.Latency.TotalCapacityQPS,
		SafeQPSTotal:        res.Latency.SafeQPS,
		SafeQPSPerInstance:  perInstance,
		EffectiveArrivalQPS: lambda,
		RequiredInstances:   required,
		ScaleOutNeeded:      required > n.ServerCount,
	}
}
