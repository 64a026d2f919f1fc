package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copilotx/copilotx/internal/auth"
	"github.com/copilotx/copilotx/internal/config"
)

// APIKeyCommand issues a signed key for the server's API key gate.
func APIKeyCommand() *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Generate an API key for non-local clients",
		Long: `Generate a signed API key accepted by the server whenever its API key
gate is enabled (serve --api-key or COPILOTX_API_KEY).

Keys are HS256 JWTs behind a copilotx- prefix, signed with a per-machine
secret stored in the config directory. Loopback clients never need one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.EnsureConfDir(); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			secret, err := auth.LoadOrCreateSecret(config.SecretFilePath())
			if err != nil {
				return err
			}
			key, err := auth.NewAPIKeyManager(secret).GenerateAPIKey(clientID)
			if err != nil {
				return fmt.Errorf("failed to generate API key: %w", err)
			}

			fmt.Println("Generated API key:")
			fmt.Println()
			fmt.Println(key)
			fmt.Println()
			fmt.Println("Usage in API requests:")
			fmt.Println("  Authorization: Bearer " + key)
			fmt.Println("  x-api-key: " + key)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "client identifier embedded in the key (default: random)")
	return cmd
}
