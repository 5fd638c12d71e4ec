package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

var runsLimit int

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List and show stored presets",
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	RunE:  runPresetsList,
}

var presetsShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one preset's params",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetsShow,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List and show pricing profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pricing profiles",
	RunE:  runProfilesList,
}

var profilesShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one pricing profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesShow,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded optimizer runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent optimizer runs",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one optimizer run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.AddCommand(presetsListCmd)
	presetsCmd.AddCommand(presetsShowCmd)

	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)

	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs")
}

func runPresetsList(cmd *cobra.Command, args []string) error {
	var result struct {
		Presets []models.Preset `json:"presets"`
		Count   int             `json:"count"`
	}
	if err := callAPI(http.MethodGet, "/api/v1/presets", nil, &result); err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(result)
	}

	if len(result.Presets) == 0 {
		fmt.Println("No presets found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCONTEXT\tRESPONSE\tQPS\tBATCH\tSERVERS\tBUILT-IN")
	fmt.Fprintln(w, "----\t-------\t--------\t---\t-----\t-------\t--------")
	for _, p := range result.Presets {
		fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%.2f\t%d\t%d\t%t\n",
			p.Name,
			p.Params.ContextTokens,
			p.Params.ResponseTokens,
			p.Params.ArrivalRateQPS,
			p.Params.BatchSize,
			p.Params.ServerCount,
			p.BuiltIn,
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d presets\n", result.Count)
	return nil
}

func runPresetsShow(cmd *cobra.Command, args []string) error {
	var preset models.Preset
	if err := callAPI(http.MethodGet, "/api/v1/presets/"+url.PathEscape(args[0]), nil, &preset); err != nil {
		return err
	}
	// Params are always shown as JSON so they can be fed back with --file
	return printJSON(preset)
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	var result struct {
		Profiles []models.PricingProfile `json:"profiles"`
		Count    int                     `json:"count"`
	}
	if err := callAPI(http.MethodGet, "/api/v1/profiles", nil, &result); err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(result)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tIN $/1K\tOUT $/1K\tPREFILL TOK/S\tDECODE TOK/S")
	fmt.Fprintln(w, "----\t-------\t--------\t-------------\t------------")
	for _, p := range result.Profiles {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.0f\t%.0f\n",
			p.Name,
			p.PricePer1KInput,
			p.PricePer1KOutput,
			p.PrefillTokensPerSec,
			p.DecodeTokensPerSec,
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d profiles\n", result.Count)
	return nil
}

func runProfilesShow(cmd *cobra.Command, args []string) error {
	var profile models.PricingProfile
	if err := callAPI(http.MethodGet, "/api/v1/profiles/"+url.PathEscape(args[0]), nil, &profile); err != nil {
		return err
	}
	return printJSON(profile)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	var result struct {
		Runs  []models.OptimizationRun `json:"runs"`
		Count int                      `json:"count"`
	}
	path := "/api/v1/optimize/runs?" + url.Values{"limit": {strconv.Itoa(runsLimit)}}.Encode()
	if err := callAPI(http.MethodGet, path, nil, &result); err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(result)
	}

	if len(result.Runs) == 0 {
		fmt.Println("No optimizer runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSLO\tFOUND\tBASE COST\tBEST COST\tFEASIBLE")
	fmt.Fprintln(w, "--\t-------\t---\t-----\t---------\t---------\t--------")
	for _, r := range result.Runs {
		best := "-"
		if r.Found {
			best = fmt.Sprintf("$%.6f", r.BestCost)
		}
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%t\t$%.6f\t%s\t%d/%d\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Targets.SLOP95,
			r.Found,
			r.BaseCost,
			best,
			r.FeasibleCount,
			r.Evaluated,
		)
	}
	w.Flush()
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	var run models.OptimizationRun
	if err := callAPI(http.MethodGet, "/api/v1/optimize/runs/"+url.PathEscape(args[0]), nil, &run); err != nil {
		return err
	}
	return printJSON(run)
}
