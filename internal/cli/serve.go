package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/copilotx/copilotx/internal/auth"
	"github.com/copilotx/copilotx/internal/config"
	"github.com/copilotx/copilotx/internal/obs"
	"github.com/copilotx/copilotx/internal/obs/otel"
	"github.com/copilotx/copilotx/internal/server"
	"github.com/copilotx/copilotx/internal/upstream"
	"github.com/copilotx/copilotx/internal/util"
	"github.com/copilotx/copilotx/internal/version"
	"github.com/copilotx/copilotx/pkg/daemon"
)

type serveFlags struct {
	host    string
	port    int
	debug   bool
	runAsD  bool
	logFile string
	apiKey  string
}

// ServeCommand starts the proxy server.
func ServeCommand() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the copilotx proxy server",
		Long: `Start the HTTP server exposing the OpenAI-compatible and
Anthropic-compatible endpoints backed by GitHub Copilot.

By default the server binds to 127.0.0.1 and requires no API key from
local clients. When exposed beyond loopback, configure a key with
--api-key or COPILOTX_API_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}

	cmd.Flags().StringVar(&flags.host, "host", config.DefaultHost, "listen address")
	cmd.Flags().IntVarP(&flags.port, "port", "p", config.DefaultPort, "listen port (next free port is probed when busy)")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "debug logging, gin debug mode and the usage metrics exporter")
	cmd.Flags().BoolVar(&flags.runAsD, "daemon", false, "run in the background")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "log file path (default: ~/.copilotx/log/copilotx.log)")
	cmd.Flags().StringVar(&flags.apiKey, "api-key", "", "require this API key from non-local clients (env: COPILOTX_API_KEY)")

	return cmd
}

func runServe(flags serveFlags) error {
	state := config.NewStateManager()
	if state.IsRunning() {
		if st, err := state.Load(); err == nil {
			fmt.Printf("Server is already running at %s (pid %d)\n", st.BaseURL, st.PID)
		} else {
			fmt.Println("Server is already running")
		}
		fmt.Println(mutedStyle.Render("Tip: use 'copilotx stop' to stop it first"))
		return nil
	}
	// A state file pointing at a dead pid is left over from a crash.
	if _, err := state.Load(); err == nil {
		_ = state.Remove()
	}

	logFile := flags.logFile
	if logFile == "" {
		logFile = filepath.Join(config.GetLogDir(), "copilotx.log")
	}
	obs.SetupLogging(obs.LogSetup{
		Debug:    flags.debug,
		LogFile:  logFile,
		FileOnly: daemon.IsDaemonProcess(),
	})

	if !flags.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	apiKey := flags.apiKey
	if apiKey == "" {
		apiKey = os.Getenv(config.EnvAPIKey)
	}

	port, err := util.FindAvailablePort(flags.host, flags.port, 20)
	if err != nil {
		return fmt.Errorf("failed to find a listen port: %w", err)
	}
	if port != flags.port {
		logrus.WithFields(logrus.Fields{
			"requested": flags.port,
			"using":     port,
		}).Warn("Preferred port is busy")
	}

	if flags.runAsD && !daemon.IsDaemonProcess() {
		fmt.Println("Starting daemon process...")
		fmt.Printf("Logging to: %s\n", logFile)
		printBanner(flags.host, port, apiKey != "")
		fmt.Println(mutedStyle.Render("Use 'copilotx stop' to stop the background server"))
		if err := daemon.Daemonize(); err != nil {
			return fmt.Errorf("failed to daemonize: %w", err)
		}
		// Daemonize exits the parent process, so this is never reached.
		return nil
	}

	manager := auth.NewManager()
	client := upstream.NewClient(manager)

	if manager.IsAuthenticated() {
		// Pre-mint a bearer so the first proxied request doesn't pay for it.
		mintCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, _, err := manager.EnsureBearer(mintCtx); err != nil {
			logrus.WithError(err).Warn("Could not mint a Copilot token at startup")
		} else if models, err := client.ListModels(mintCtx); err == nil {
			logrus.WithField("models", len(models)).Info("Copilot API reachable")
		}
		cancel()
	} else {
		logrus.Warn("Not authenticated with GitHub; run 'copilotx auth login'. Requests will fail until then")
	}

	opts := []server.ServerOption{
		server.WithHost(flags.host),
		server.WithPort(port),
		server.WithAPIKey(apiKey),
		server.WithVersion(version.Version),
		server.WithUpstreamClient(client),
		server.WithStateManager(state),
	}

	var meter *otel.MeterSetup
	if flags.debug {
		meter, err = otel.NewMeterSetup(context.Background(), otel.DefaultConfig())
		if err != nil {
			logrus.WithError(err).Warn("Usage metrics disabled")
		} else {
			opts = append(opts, server.WithUsageTracker(meter.Tracker()))
		}
	}

	srv := server.NewServer(manager, opts...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// Poll the port instead of sleeping, so the banner only prints once
	// the listener answers.
	if err := util.WaitForPortReady(flags.host, port, 2*time.Second); err != nil {
		shutdownMeter(meter)
		select {
		case startErr := <-serverErr:
			if startErr != nil {
				return fmt.Errorf("server failed to start: %w", startErr)
			}
			return nil
		default:
			return fmt.Errorf("timeout: server did not start on %s:%d", flags.host, port)
		}
	}

	printBanner(flags.host, port, apiKey != "")

	select {
	case err := <-serverErr:
		shutdownMeter(meter)
		if err != nil {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	case <-sigChan:
		fmt.Println("\nReceived shutdown signal, stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stopErr := srv.Stop(ctx)
		shutdownMeter(meter)
		return stopErr
	}
}

// shutdownMeter flushes pending metrics. Nil-safe.
func shutdownMeter(meter *otel.MeterSetup) {
	if meter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := meter.Shutdown(ctx); err != nil {
		logrus.WithError(err).Debug("Meter shutdown failed")
	}
}

// printBanner shows the endpoints clients should point at.
func printBanner(host string, port int, gated bool) {
	base := fmt.Sprintf("http://%s:%d", util.ResolveHost(host), port)

	fmt.Println()
	fmt.Println(titleStyle.Render("copilotx v" + version.Version))
	fmt.Println()
	fmt.Println("API endpoints:")
	fmt.Printf("  %-18s %s/v1/chat/completions\n", "OpenAI Chat:", base)
	fmt.Printf("  %-18s %s/v1/responses\n", "OpenAI Responses:", base)
	fmt.Printf("  %-18s %s/v1/messages\n", "Anthropic:", base)
	fmt.Printf("  %-18s %s/v1/models\n", "Models:", base)
	fmt.Printf("  %-18s %s/health\n", "Health:", base)
	if gated {
		fmt.Println(mutedStyle.Render("Non-local clients must present the configured API key"))
	}
	fmt.Println()
}
