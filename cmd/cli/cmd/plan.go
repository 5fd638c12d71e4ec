package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/genai-cost-planner/genai-cost-planner/internal/scenario"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

var (
	planProfile string

	targetSLO     float64
	targetUtilCap float64
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Evaluate cost and latency of a configuration",
	Long: `Evaluate a configuration on the planner server. Start from a built-in
preset or a params file and override individual fields with flags.`,
	Example: `  planner plan --preset Pilot --qps 8 --servers 2
  planner plan -f params.yaml --profile premium -o json`,
	RunE: runPlan,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Get tuning advice for a configuration",
	RunE:  runRecommend,
}

var capacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Estimate how many instances a configuration needs",
	RunE:  runCapacity,
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Find the cheapest configuration that meets the latency SLO",
	Long: `Search context length, response length and batch size around the
starting configuration for the lowest cost per query whose p95 latency
and utilization stay within the targets.`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(capacityCmd)
	rootCmd.AddCommand(optimizeCmd)

	for _, c := range []*cobra.Command{planCmd, recommendCmd, capacityCmd, optimizeCmd} {
		addParamFlags(c)
	}
	planCmd.Flags().StringVar(&planProfile, "profile", "", "Apply a stored pricing profile before evaluating")

	for _, c := range []*cobra.Command{recommendCmd, optimizeCmd} {
		c.Flags().Float64Var(&targetSLO, "slo", 0, "p95 latency SLO in seconds (server default when 0)")
		c.Flags().Float64Var(&targetUtilCap, "util-cap", 0, "Utilization cap (server default when 0)")
	}
}

func targetedBody(p models.Params) targetedRequest {
	req := targetedRequest{Params: p}
	if targetSLO > 0 {
		slo := targetSLO
		req.SLOP95 = &slo
	}
	if targetUtilCap > 0 {
		capacity := targetUtilCap
		req.UtilizationCap = &capacity
	}
	return req
}

func runPlan(cmd *cobra.Command, args []string) error {
	p, err := buildParams(paramFlags)
	if err != nil {
		return err
	}

	path := "/api/v1/plan"
	if planProfile != "" {
		path += "?" + url.Values{"profile": {planProfile}}.Encode()
	}

	var res models.Result
	if err := callAPI(http.MethodPost, path, p, &res); err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(res)
	}
	return printResult(res)
}

func printResult(res models.Result) error {
	name := paramFlags.preset
	if paramFlags.file != "" {
		name = paramFlags.file
	}
	if err := scenario.WriteSummary(os.Stdout, []scenario.Outcome{{Name: name, Result: res}}); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	fmt.Fprintln(w, "------\t-----")
	fmt.Fprintf(w, "Input tokens/query\t%.1f\n", res.Tokens.InputPerQuery)
	fmt.Fprintf(w, "Output tokens/query\t%.1f\n", res.Tokens.OutputPerQuery)
	fmt.Fprintf(w, "Input cost/query\t$%.6f\n", res.Cost.InputPerQuery)
	fmt.Fprintf(w, "Output cost/query\t$%.6f\n", res.Cost.OutputPerQuery)
	fmt.Fprintf(w, "Cost/day\t$%.2f\n", res.Cost.PerDay)
	fmt.Fprintf(w, "Cost/month\t$%.2f\n", res.Cost.PerMonth)
	fmt.Fprintf(w, "Service time\t%s\n", seconds(res.Latency.ServiceBaseSeconds))
	fmt.Fprintf(w, "Servers\t%d\n", res.Latency.Servers)
	fmt.Fprintf(w, "Capacity\t%.2f qps\n", res.Latency.TotalCapacityQPS)
	fmt.Fprintf(w, "Safe QPS\t%.2f\n", res.Latency.SafeQPS)
	w.Flush()

	if len(res.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, r := range res.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
	}
	return nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	p, err := buildParams(paramFlags)
	if err != nil {
		return err
	}

	var resp RecommendResponse
	if err := callAPI(http.MethodPost, "/api/v1/recommend", targetedBody(p), &resp); err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(resp)
	}

	fmt.Printf("Targets: p95 <= %.2fs, utilization <= %.0f%%\n",
		resp.Targets.SLOP95, resp.Targets.UtilizationCap*100)
	fmt.Printf("Current: p95 %s, utilization %.0f%%, $%.4f/query\n\n",
		seconds(resp.Result.Latency.P95Seconds), resp.Result.Latency.Rho*100, resp.Result.Cost.PerQuery)
	for _, r := range resp.Recommendations {
		fmt.Printf("  - %s\n", r)
	}
	return nil
}

func runCapacity(cmd *cobra.Command, args []string) error {
	p, err := buildParams(paramFlags)
	if err != nil {
		return err
	}

	var plan models.CapacityPlan
	if err := callAPI(http.MethodPost, "/api/v1/capacity", p, &plan); err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(plan)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVERS\tMAX QPS\tSAFE QPS\tSAFE/INSTANCE\tDEMAND\tREQUIRED")
	fmt.Fprintln(w, "-------\t-------\t--------\t-------------\t------\t--------")
	fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
		plan.Servers,
		plan.MaxQPSTotal,
		plan.SafeQPSTotal,
		plan.SafeQPSPerInstance,
		plan.EffectiveArrivalQPS,
		plan.RequiredInstances,
	)
	w.Flush()

	if plan.ScaleOutNeeded {
		fmt.Printf("\nScale out to %d instances to stay under the utilization cap.\n", plan.RequiredInstances)
	} else {
		fmt.Println("\nCurrent server count is sufficient.")
	}
	return nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	p, err := buildParams(paramFlags)
	if err != nil {
		return err
	}

	var resp OptimizeResponse
	if err := callAPI(http.MethodPost, "/api/v1/optimize", targetedBody(p), &resp); err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(resp)
	}

	fmt.Printf("Evaluated %d candidates, %d feasible (p95 <= %.2fs, utilization <= %.0f%%)\n",
		resp.Evaluated, resp.Count, resp.Targets.SLOP95, resp.Targets.UtilizationCap*100)
	if resp.RunID != "" {
		fmt.Printf("Run ID: %s\n", resp.RunID)
	}

	if resp.Best == nil {
		fmt.Println("\nNo feasible configuration found. Try more servers, a looser SLO, or a faster decode model.")
		return nil
	}

	best := resp.Best
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONTEXT\tRESPONSE\tBATCH\tCOST/QUERY\tP95\tRHO\tBASELINE COST")
	fmt.Fprintln(w, "-------\t--------\t-----\t----------\t---\t---\t-------------")
	fmt.Fprintf(w, "%.0f\t%.0f\t%d\t$%.6f\t%s\t%.2f\t$%.6f\n",
		best.Params.ContextTokens,
		best.Params.ResponseTokens,
		best.Params.BatchSize,
		best.Score.CostPerQuery,
		seconds(best.Score.P95Seconds),
		best.Result.Latency.Rho,
		resp.BaseCost,
	)
	w.Flush()

	if resp.BaseCost > 0 {
		fmt.Printf("\nSavings vs baseline: %.1f%%\n", (1-best.Score.CostPerQuery/resp.BaseCost)*100)
	}
	return nil
}
