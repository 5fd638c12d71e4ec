// Package recommend turns one evaluation into human-readable advice against
// a latency SLO and a utilization cap.
package recommend

import (
	"fmt"

	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// Balanced is emitted when no rule fires
const Balanced = "Configuration looks balanced for the current load."

// Recommend applies the rules in priority order: utilization over the cap,
// p95 over the SLO, output cost dominating, input cost dominating.
func Recommend(res models.Result, targets models.Targets) []string {
	var recs []string
	if res.Latency.Rho > targets.UtilizationCap {
		recs = append(recs, "Utilization exceeds target: increase batch or reduce QPS / scale out.")
	}
	if res.Latency.P95Seconds > targets.SLOP95 {
		recs = append(recs, fmt.Sprintf("p95 exceeds SLO %.2fs: reduce response length, choose a faster decode model, or increase batch.", targets.SLOP95))
	}
	if res.Cost.OutputPerQuery > res.Cost.InputPerQuery {
		recs = append(recs, "Output cost dominates: shorten responses or return a more compact format.")
	}
	if res.Cost.InputPerQuery > res.Cost.OutputPerQuery {
		recs = append(recs, "Input cost dominates: prune context, improve cache hit/savings, or share context via batching.")
	}
	if len(recs) == 0 {
		recs = append(recs, Balanced)
	}
	return recs
}
