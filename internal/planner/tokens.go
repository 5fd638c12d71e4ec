package planner

import "github.com/genai-cost-planner/genai-cost-planner/pkg/models"

// AccountTokens derives per-query token counts. Cache savings and batching
// amortize the shared context; the prompt is paid by every query.
// p must already be normalized.
func AccountTokens(p models.Params) models.Tokens {
	effective := p.ContextTokens * (1.0 - p.CacheHitRate*p.CacheSavingsFraction)
	perBatch := effective / float64(p.BatchSize)
	return models.Tokens{
		EffectiveContext:         effective,
		EffectiveContextPerBatch: perBatch,
		InputPerQuery:            perBatch + p.PromptTokens,
		OutputPerQuery:           p.ResponseTokens,
	}
}
