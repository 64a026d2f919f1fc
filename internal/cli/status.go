package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/copilotx/copilotx/internal/auth"
	"github.com/copilotx/copilotx/internal/config"
)

// StatusCommand reports server and authentication state.
func StatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server and authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := config.NewStateManager()
			if st, err := state.Load(); err == nil && state.IsRunning() {
				fmt.Println(successStyle.Render("Server: running"))
				fmt.Printf("  Address: %s\n", st.BaseURL)
				fmt.Printf("  PID:     %d\n", st.PID)
				fmt.Printf("  Uptime:  %s\n", time.Since(st.StartedAt).Round(time.Second))
			} else {
				fmt.Println("Server: stopped")
			}

			fmt.Println()
			authStatus := auth.NewManager().Status()
			if !authStatus.Authenticated {
				fmt.Println("Auth: not authenticated (run 'copilotx auth login')")
				return nil
			}
			if authStatus.TokenValid {
				fmt.Printf("Auth: authenticated, Copilot token valid for %s\n",
					time.Duration(authStatus.ExpiresIn)*time.Second)
			} else {
				fmt.Println("Auth: authenticated, Copilot token expired (minted on use)")
			}
			return nil
		},
	}
}

// StopCommand terminates a background server started with --daemon or from
// another terminal.
func StopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := config.NewStateManager()
			if !state.IsRunning() {
				fmt.Println("Server is not running")
				// Drop a stale state file left by a crash.
				_ = state.Remove()
				return nil
			}

			pid, err := state.GetPID()
			if err != nil {
				return err
			}
			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}

			fmt.Printf("Stopping server (pid %d)...\n", pid)
			if err := terminateProcess(process); err != nil {
				return fmt.Errorf("failed to signal server: %w", err)
			}

			for i := 0; i < 30; i++ {
				if !state.IsRunning() {
					fmt.Println(successStyle.Render("Server stopped"))
					return nil
				}
				time.Sleep(1 * time.Second)
			}

			fmt.Println(warnStyle.Render("Server didn't stop gracefully, force killing..."))
			if err := process.Kill(); err != nil {
				return fmt.Errorf("failed to force kill: %w", err)
			}
			_ = state.Remove()
			return nil
		},
	}
}
