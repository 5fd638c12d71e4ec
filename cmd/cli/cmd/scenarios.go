package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/genai-cost-planner/genai-cost-planner/internal/planner"
	"github.com/genai-cost-planner/genai-cost-planner/internal/scenario"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Evaluate scenario files locally",
}

var scenariosRunCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Evaluate every scenario in a YAML file without a server",
	Long: `Evaluate every scenario in a YAML file locally. Each scenario may
start from a built-in preset and override any params field:

  scenarios:
    - name: POC
      preset: POC
    - name: POC on two servers
      preset: POC
      params:
        server_count: 2`,
	Args: cobra.ExactArgs(1),
	RunE: runScenariosRun,
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
	scenariosCmd.AddCommand(scenariosRunCmd)
}

func runScenariosRun(cmd *cobra.Command, args []string) error {
	scenarios, err := scenario.LoadFile(args[0])
	if err != nil {
		return err
	}

	memo, err := planner.NewMemo(planner.DefaultMemoSize)
	if err != nil {
		return fmt.Errorf("failed to create evaluation cache: %w", err)
	}
	outcomes := scenario.Run(memo, scenarios)

	if outputFormat == "json" {
		return printJSON(outcomes)
	}
	return scenario.WriteSummary(os.Stdout, outcomes)
}
