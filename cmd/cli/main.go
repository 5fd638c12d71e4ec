package main

import (
	"fmt"
	"os"

	"github.com/genai-cost-planner/genai-cost-planner/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
