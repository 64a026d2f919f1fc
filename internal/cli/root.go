// Package cli implements the copilotx command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/copilotx/copilotx/internal/config"
	"github.com/copilotx/copilotx/internal/version"
)

// BuildInfo carries build metadata set by the compiler via -ldflags.
type BuildInfo struct {
	GitCommit string
	BuildTime string
}

// NewRootCommand assembles the copilotx command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	var (
		verbose   bool
		configDir string
	)

	rootCmd := &cobra.Command{
		Use:   "copilotx",
		Short: "copilotx - Local OpenAI and Anthropic compatible proxy for GitHub Copilot",
		Long: `copilotx exposes your GitHub Copilot subscription through local
OpenAI-compatible (chat completions, responses) and Anthropic-compatible
(messages) HTTP endpoints, so any client speaking those APIs can use
Copilot models.

Authenticate once with 'copilotx auth login', then run 'copilotx serve'.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.TraceLevel)
			}
			if configDir != "" {
				os.Setenv(config.EnvConfigDir, configDir)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default: ~/.copilotx)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("copilotx\n")
			fmt.Printf("Version:    %s\n", version.Version)
			fmt.Printf("Git Commit: %s\n", info.GitCommit)
			fmt.Printf("Build Time: %s\n", info.BuildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	rootCmd.AddCommand(ServeCommand())
	rootCmd.AddCommand(AuthCommand())
	rootCmd.AddCommand(ModelsCommand())
	rootCmd.AddCommand(StatusCommand())
	rootCmd.AddCommand(StopCommand())
	rootCmd.AddCommand(APIKeyCommand())

	return rootCmd
}
