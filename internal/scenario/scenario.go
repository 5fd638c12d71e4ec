// Package scenario loads named configurations from YAML and evaluates them
// in one batch.
//
// A scenario file looks like:
//
//	scenarios:
//	  - name: chat-pilot
//	    preset: Pilot
//	    params:
//	      arrival_rate_qps: 8
//	      server_count: 2
//	  - name: custom
//	    params:
//	      context_tokens: 1500
//	      response_tokens: 100
//
// When preset is set, params override individual fields of the built-in.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/genai-cost-planner/genai-cost-planner/internal/metrics"
	"github.com/genai-cost-planner/genai-cost-planner/internal/planner"
	"github.com/genai-cost-planner/genai-cost-planner/internal/presets"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// Scenario is one named configuration
type Scenario struct {
	Name   string
	Preset string
	Params models.Params
}

// Outcome pairs a scenario with its evaluation
type Outcome struct {
	Name   string        `json:"name"`
	Result models.Result `json:"result"`
}

type fileWire struct {
	Scenarios []scenarioWire `yaml:"scenarios"`
}

type scenarioWire struct {
	Name   string    `yaml:"name"`
	Preset string    `yaml:"preset"`
	Params yaml.Node `yaml:"params"`
}

// LoadFile reads scenarios from a YAML file
func LoadFile(path string) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes scenarios strictly: unknown keys are errors at every level.
func Load(r io.Reader) ([]Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file fileWire
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario file is empty")
		}
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, errors.New("scenario file defines no scenarios")
	}

	seen := make(map[string]bool, len(file.Scenarios))
	out := make([]Scenario, 0, len(file.Scenarios))
	for i, w := range file.Scenarios {
		if w.Name == "" {
			return nil, fmt.Errorf("scenario %d: name is required", i)
		}
		if seen[w.Name] {
			return nil, fmt.Errorf("scenario %q: duplicate name", w.Name)
		}
		seen[w.Name] = true

		var p models.Params
		if w.Preset != "" {
			var ok bool
			if p, ok = presets.BuiltIn(w.Preset); !ok {
				return nil, fmt.Errorf("scenario %q: unknown preset %q", w.Name, w.Preset)
			}
		}
		if w.Params.Kind != 0 {
			if err := decodeParams(&w.Params, &p); err != nil {
				return nil, fmt.Errorf("scenario %q: %w", w.Name, err)
			}
		}
		out = append(out, Scenario{Name: w.Name, Preset: w.Preset, Params: p})
	}
	return out, nil
}

// decodeParams overlays node onto p. yaml.Node.Decode ignores KnownFields,
// so the node is re-encoded and decoded strictly.
func decodeParams(node *yaml.Node, p *models.Params) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to re-encode params: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// Run evaluates every scenario in order
func Run(e planner.Evaluator, scenarios []Scenario) []Outcome {
	out := make([]Outcome, 0, len(scenarios))
	for _, s := range scenarios {
		res := e.Evaluate(s.Params)
		metrics.RecordEvaluation("scenario", res.Latency.Stable)
		out = append(out, Outcome{Name: s.Name, Result: res})
	}
	return out
}

// WriteSummary prints a short human-readable block per outcome
func WriteSummary(w io.Writer, outcomes []Outcome) error {
	for _, o := range outcomes {
		lat := o.Result.Latency
		status := "OK"
		if !lat.Stable {
			status = "UNSTABLE"
		}
		if _, err := fmt.Fprintf(w, "== %s == [%s]\n", o.Name, status); err != nil {
			return err
		}
		fmt.Fprintf(w, "cost/query: $%.4f | cost/1k: $%.2f\n", o.Result.Cost.PerQuery, o.Result.Cost.Per1K)
		fmt.Fprintf(w, "p50: %s | p95: %s | rho: %.2f | mu: %.2f qps\n",
			seconds(lat.P50Seconds), seconds(lat.P95Seconds), lat.Rho, lat.MuQPS)
		if !lat.Stable {
			fmt.Fprintf(w, "safe_qps≈%.2f\n", lat.SafeQPS)
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func seconds(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.3fs", v)
}
