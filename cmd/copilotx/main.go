package main

import (
	"fmt"
	"os"

	"github.com/copilotx/copilotx/internal/cli"
)

// Set by the compiler via -ldflags.
var (
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	rootCmd := cli.NewRootCommand(cli.BuildInfo{
		GitCommit: gitCommit,
		BuildTime: buildTime,
	})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
