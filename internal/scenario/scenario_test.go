package scenario

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genai-cost-planner/genai-cost-planner/internal/planner"
	"github.com/genai-cost-planner/genai-cost-planner/internal/presets"
)

const sample = `
scenarios:
  - name: pilot-scaled
    preset: Pilot
    params:
      arrival_rate_qps: 8
      server_count: 2
  - name: custom
    params:
      context_tokens: 1500
      prompt_tokens: 80
      response_tokens: 100
      arrival_rate_qps: 0.5
      price_per_1k_input: 0.5
      price_per_1k_output: 1.5
      prefill_tokens_per_sec: 20000
      decode_tokens_per_sec: 150
  - name: plain-poc
    preset: POC
`

func TestLoad(t *testing.T) {
	scenarios, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	pilot, _ := presets.BuiltIn(presets.Pilot)
	got := scenarios[0]
	assert.Equal(t, "pilot-scaled", got.Name)
	assert.Equal(t, 8.0, got.Params.ArrivalRateQPS)
	assert.Equal(t, 2, got.Params.ServerCount)
	assert.Equal(t, pilot.ContextTokens, got.Params.ContextTokens, "preset fields survive the overlay")
	assert.Equal(t, pilot.BatchSize, got.Params.BatchSize)

	assert.Equal(t, 1500.0, scenarios[1].Params.ContextTokens)
	assert.Zero(t, scenarios[1].Params.BatchSize)

	poc, _ := presets.BuiltIn(presets.POC)
	assert.Equal(t, poc, scenarios[2].Params)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "empty"},
		{"no scenarios", "scenarios: []\n", "no scenarios"},
		{"unknown top-level key", "scenarioz: []\n", "failed to parse"},
		{"missing name", "scenarios:\n  - preset: POC\n", "name is required"},
		{"duplicate name", "scenarios:\n  - name: a\n  - name: a\n", "duplicate"},
		{"unknown preset", "scenarios:\n  - name: a\n    preset: Staging\n", "unknown preset"},
		{"unknown param", "scenarios:\n  - name: a\n    params:\n      ctx: 5\n", "invalid params"},
		{"wrong type", "scenarios:\n  - name: a\n    params:\n      batch_size: many\n", "invalid params"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	scenarios, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, scenarios, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunAndSummary(t *testing.T) {
	scenarios, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	outcomes := Run(planner.Direct, scenarios)
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, scenarios[i].Name, o.Name)
		assert.Equal(t, planner.Evaluate(scenarios[i].Params), o.Result)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, outcomes))
	out := buf.String()

	assert.Contains(t, out, "== custom == [OK]")
	// POC at 1 qps on one server has no steady state
	assert.Contains(t, out, "== plain-poc == [UNSTABLE]")
	assert.Contains(t, out, "p50: ∞ | p95: ∞")
	assert.Contains(t, out, "safe_qps≈")
}
