// memguard — an in-process memory-leak detection and diagnostics agent
// for long-running Go services.
//
// Samples the runtime's heap/GC/goroutine counters on an adaptive
// interval, classifies leak risk against an established baseline, tracks
// recurring growth/allocation hotspots, and raises alerts through a
// configurable Alert Manager. Snapshots and comparisons are available
// both from the CLI and over a streaming HTTP/SSE surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitriimaksimovdevelop/memguard/internal/agent"
	"github.com/dmitriimaksimovdevelop/memguard/internal/telemetry"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "memguard",
		Short:   "In-process memory-leak detection and diagnostics agent",
		Version: version,
		Long: `memguard — single Go binary wrapping a long-running process's memory
behavior in leak detection, hotspot analysis, and alerting.

run            start the agent: sampler, detector, hotspot analyzer, alert
               manager, and streaming server, until SIGINT/SIGTERM
snapshot       capture one heap profile + sample and print its analysis
diff           compare two saved snapshot files
capabilities   report native eBPF memory-pressure counter availability
mcp            serve get_health/snapshot/get_leaks/get_active_alerts over MCP`,
	}

	rootCmd.AddCommand(newRunCmd(), newSnapshotCmd(), newDiffCmd(), newCapabilitiesCmd(), newMCPCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the Supervisor's logger from a --verbose/--quiet pair of
// flags.
func newLogger(quiet, verbose bool) telemetry.Logger {
	if quiet {
		return telemetry.Noop{}
	}
	level := telemetry.LevelInfo
	if verbose {
		level = telemetry.LevelDebug
	}
	return telemetry.NewStderrLogger(level)
}

func newRunCmd() *cobra.Command {
	var configPath string
	var quiet, verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the memory-guard agent and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log := newLogger(quiet, verbose)
			sup := agent.New(cfg, log, nil)
			sup.Start()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			log.Info("shutting down")
			return sup.GracefulShutdown(cfg.ErrorHandling.GracefulShutdownTimeout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (env vars starting with MEMGUARD_ take precedence)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}
