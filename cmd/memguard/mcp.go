package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitriimaksimovdevelop/memguard/internal/agent"
	"github.com/dmitriimaksimovdevelop/memguard/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve memguard's health/snapshot/leak/alert surface over MCP",
		Long: `Starts a JSON-RPC server implementing the Model Context Protocol (MCP)
over stdio, exposing get_health, snapshot, get_leaks, and
get_active_alerts tools backed by a running Agent Supervisor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			log := newLogger(false, false)
			sup := agent.New(cfg, log, nil)
			sup.Start()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			defer sup.GracefulShutdown(cfg.ErrorHandling.GracefulShutdownTimeout)

			srv := mcp.NewServer(version, sup)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	return cmd
}
