package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL    string
	outputFormat string
	apiKey       string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "GenAI cost planner CLI - estimate cost and latency of LLM workloads",
	Long: `planner estimates per-query cost, daily spend and queueing latency
for an LLM serving configuration.

This CLI tool allows you to:
- Evaluate a configuration against a running planner server
- Search for the cheapest configuration that meets a latency SLO
- Sweep batch size or context length
- Run scenario files locally without a server
- Manage API keys for the server`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", getEnvOrDefault("PLANNER_URL", "http://localhost:8080"), "Planner server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("PLANNER_API_KEY"), "API key sent as X-API-Key")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
