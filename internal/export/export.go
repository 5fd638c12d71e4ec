// Package export writes sweeps as CSV and results as JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/genai-cost-planner/genai-cost-planner/internal/service/sweep"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// SeriesCSV writes a header row followed by one row per point. Infinite
// latencies are written as "inf".
func SeriesCSV(w io.Writer, s sweep.Series) error {
	cw := csv.NewWriter(w)
	header := []string{string(s.Axis), "cost_per_query", "p50_s", "p95_s", "rho", "stable"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range s.Points {
		row := []string{
			formatFloat(p.X),
			formatFloat(p.CostPerQuery),
			formatFloat(p.P50Seconds),
			formatFloat(p.P95Seconds),
			formatFloat(p.Rho),
			strconv.FormatBool(p.Stable),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ResultJSON writes res as indented JSON
func ResultJSON(w io.Writer, res models.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
