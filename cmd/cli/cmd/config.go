package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View CLI configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Explain how to set a configuration value",
	Long: `Explain how to set a configuration value. Supported keys:
  server   - planner server URL
  api-key  - API key sent with every request
  db       - database path used by 'planner keys'`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	fmt.Println("Planner CLI Configuration")
	fmt.Println("=========================")
	fmt.Println()
	fmt.Printf("Server URL:     %s\n", serverURL)
	fmt.Printf("Output Format:  %s\n", outputFormat)
	if apiKey != "" {
		fmt.Printf("API Key:        %s...\n", truncateString(apiKey, 8))
	} else {
		fmt.Println("API Key:        (none)")
	}
	fmt.Println()

	fmt.Println("Environment Variables:")
	for _, name := range []string{"PLANNER_URL", "PLANNER_API_KEY", "DATABASE_PATH"} {
		if v := os.Getenv(name); v != "" {
			if name == "PLANNER_API_KEY" {
				v = truncateString(v, 8) + "..."
			}
			fmt.Printf("  %s=%s\n", name, v)
		} else {
			fmt.Printf("  %s (not set, using default)\n", name)
		}
	}

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	var env, flag string
	switch key {
	case "server":
		env, flag = "PLANNER_URL", "--server"
	case "api-key":
		env, flag = "PLANNER_API_KEY", "--api-key"
	case "db":
		env, flag = "DATABASE_PATH", "--db"
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	fmt.Printf("To set %s, use the environment variable:\n", key)
	fmt.Printf("  export %s=%s\n", env, value)
	fmt.Println()
	fmt.Printf("Or use the %s flag with each command.\n", flag)
	return nil
}

// truncateString shortens s to at most n runes
func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
