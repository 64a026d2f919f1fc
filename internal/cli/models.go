package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/copilotx/copilotx/internal/auth"
	"github.com/copilotx/copilotx/internal/upstream"
)

// ModelsCommand lists the Copilot models available to this account.
func ModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available through Copilot",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := auth.NewManager()
			if !manager.IsAuthenticated() {
				return fmt.Errorf("not authenticated: run 'copilotx auth login' first")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			models, err := upstream.NewClient(manager).ListModels(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch models: %w", err)
			}
			if len(models) == 0 {
				fmt.Println("No models available.")
				return nil
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("%-36s %-28s %s", "MODEL", "NAME", "VENDOR")))
			for _, raw := range models {
				entry := gjson.ParseBytes(raw)
				name := entry.Get("name").String()
				if name == "" {
					name = "-"
				}
				vendor := entry.Get("vendor").String()
				if vendor == "" {
					vendor = "github-copilot"
				}
				fmt.Printf("%-36s %-28s %s\n", entry.Get("id").String(), name, vendor)
			}
			fmt.Println()
			fmt.Printf("%d models\n", len(models))
			return nil
		},
	}
}
