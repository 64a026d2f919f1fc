package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/copilotx/copilotx/internal/auth"
	"github.com/copilotx/copilotx/internal/config"
)

// AuthCommand groups the authentication subcommands.
func AuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage GitHub Copilot authentication",
	}
	cmd.AddCommand(loginCommand())
	cmd.AddCommand(logoutCommand())
	cmd.AddCommand(authStatusCommand())
	return cmd
}

func loginCommand() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with GitHub using the device flow",
		Long: `Authenticate with GitHub and store the OAuth grant locally.

Without flags this runs the GitHub device flow: a one-time code is shown
here and entered on github.com in your browser. An existing token can be
stored directly with --token (or the GITHUB_TOKEN environment variable).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), token)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "store this GitHub token instead of running the device flow")
	return cmd
}

func runLogin(ctx context.Context, token string) error {
	manager := auth.NewManager()

	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
		if token != "" {
			fmt.Println(mutedStyle.Render("Using GitHub token from GITHUB_TOKEN"))
		}
	}
	if token != "" {
		return saveAndVerify(ctx, manager, token)
	}

	flow := auth.NewDeviceFlow()

	fmt.Println("Requesting device code from GitHub...")
	dc, err := flow.RequestCode(ctx)
	if err != nil {
		return fmt.Errorf("failed to start device flow: %w", err)
	}

	fmt.Println()
	fmt.Println("Open the verification page and enter this code:")
	fmt.Println()
	fmt.Printf("  %s\n", dc.VerificationURI)
	fmt.Println()
	fmt.Println(codeBoxStyle.Render(dc.UserCode))
	fmt.Println()

	if err := browser.OpenURL(dc.VerificationURI); err != nil {
		fmt.Println(mutedStyle.Render("Could not open the browser automatically; use the URL above"))
	}

	fmt.Printf("Waiting for authorization (code expires in %s)...\n",
		time.Duration(dc.ExpiresIn)*time.Second)

	grant, err := flow.PollToken(ctx, dc)
	if err != nil {
		fmt.Println(errorStyle.Render("Authorization was not completed"))
		return err
	}
	return saveAndVerify(ctx, manager, grant)
}

// saveAndVerify persists the grant, then proves it works by minting a
// Copilot bearer. A mint failure still leaves the grant stored.
func saveAndVerify(ctx context.Context, manager *auth.Manager, grant string) error {
	if err := manager.SaveGrant(grant); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	mintCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, _, err := manager.EnsureBearer(mintCtx); err != nil {
		fmt.Println(warnStyle.Render("Signed in, but minting a Copilot token failed: " + err.Error()))
		fmt.Println(mutedStyle.Render("Check that the account has an active Copilot subscription"))
		return nil
	}

	fmt.Println(successStyle.Render("Authenticated with GitHub Copilot"))
	fmt.Println(mutedStyle.Render("Credentials stored in " + config.AuthFilePath()))
	return nil
}

func logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := auth.NewManager().Logout()
			if err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}
			if removed {
				fmt.Println("Signed out; credentials removed.")
			} else {
				fmt.Println("No stored credentials.")
			}
			return nil
		},
	}
}

func authStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := auth.NewManager()
			st := manager.Status()

			if !st.Authenticated {
				fmt.Println("Not authenticated. Run 'copilotx auth login'.")
				return nil
			}

			fmt.Println(successStyle.Render("Authenticated"))
			if creds, err := auth.NewStore().Load(); err == nil && creds != nil {
				fmt.Printf("GitHub grant:  %s\n", redactToken(creds.GitHubToken))
			}
			if st.TokenValid {
				fmt.Printf("Copilot token: valid for %s\n",
					time.Duration(st.ExpiresIn)*time.Second)
			} else {
				fmt.Println("Copilot token: expired (minted on the next request)")
			}
			return nil
		},
	}
}

// redactToken keeps just enough of a token to recognize it.
func redactToken(token string) string {
	if len(token) < 12 {
		return "****"
	}
	return token[:7] + "…" + token[len(token)-4:]
}
