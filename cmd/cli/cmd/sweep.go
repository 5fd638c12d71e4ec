package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	sweepMaxBatch int
	sweepPoints   int
	sweepCSV      bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Vary one parameter and tabulate cost and latency",
}

var sweepBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Sweep batch size from 1 to --max-batch",
	RunE:  runSweepBatch,
}

var sweepContextCmd = &cobra.Command{
	Use:   "context",
	Short: "Sweep context length from 0 to twice the starting value",
	RunE:  runSweepContext,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.AddCommand(sweepBatchCmd)
	sweepCmd.AddCommand(sweepContextCmd)

	addParamFlags(sweepBatchCmd)
	addParamFlags(sweepContextCmd)
	sweepBatchCmd.Flags().IntVar(&sweepMaxBatch, "max-batch", 32, "Largest batch size")
	sweepContextCmd.Flags().IntVar(&sweepPoints, "points", 30, "Number of context lengths")
	sweepCmd.PersistentFlags().BoolVar(&sweepCSV, "csv", false, "Print CSV instead of a table")
}

func runSweepBatch(cmd *cobra.Command, args []string) error {
	return runSweep("/api/v1/sweeps/batch", url.Values{"max_batch": {strconv.Itoa(sweepMaxBatch)}}, "BATCH")
}

func runSweepContext(cmd *cobra.Command, args []string) error {
	return runSweep("/api/v1/sweeps/context", url.Values{"points": {strconv.Itoa(sweepPoints)}}, "CONTEXT")
}

func runSweep(path string, query url.Values, xLabel string) error {
	p, err := buildParams(paramFlags)
	if err != nil {
		return err
	}

	if sweepCSV {
		query.Set("format", "csv")
		raw, err := callAPIRaw(http.MethodPost, path+"?"+query.Encode(), p)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(raw)
		return err
	}

	var series SweepResponse
	if err := callAPI(http.MethodPost, path+"?"+query.Encode(), p, &series); err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(series)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tCOST/QUERY\tP50\tP95\tRHO\tSTABLE\n", xLabel)
	fmt.Fprintln(w, "-----\t----------\t---\t---\t---\t------")
	for _, pt := range series.Points {
		fmt.Fprintf(w, "%g\t$%.6f\t%s\t%s\t%.2f\t%t\n",
			pt.X,
			pt.CostPerQuery,
			optionalSeconds(pt.P50Seconds),
			optionalSeconds(pt.P95Seconds),
			pt.Rho,
			pt.Stable,
		)
	}
	w.Flush()
	return nil
}
