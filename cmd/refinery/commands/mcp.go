// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Exposes refinement tools to LLM agents via stdio, with optional /metrics
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harper/refinery/internal/mcp"
	"github.com/harper/refinery/internal/metrics"
)

var metricsAddr string

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs Refinery as an MCP (Model Context Protocol) server, enabling
LLM agents like Claude to refine, diff, review and roll back chapters via stdio.

Configure in Claude Desktop's config file to enable the refinery tools.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  refinery mcp

  # Expose Prometheus metrics while serving
  refinery mcp --metrics-addr 127.0.0.1:9464

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "refinery": {
  #       "command": "refinery",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default $REFINERY_METRICS_ADDR)")

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.APIKey == "" {
		logger.Warn("REFINERY_API_KEY not set - requests to the model gateway are unauthenticated")
	}

	server := mcpserver.NewMCPServer("Refinery", versionInfo.Version)
	handlers := mcp.RegisterTools(server, a.svc, a.exporter, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// ServeStdio returns on stdin EOF or its own signal handling
		defer stop()
		if err := mcpserver.ServeStdio(server); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	addr := metricsAddr
	if addr == "" {
		addr = a.cfg.MetricsAddr
	}
	if addr != "" {
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", addr))
			if err := metrics.Serve(gctx, addr, a.registry); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
			return nil
		})
	}

	logger.Info("refinery MCP server starting on stdio")
	err = g.Wait()

	// Background batches finish their current unit before storage closes
	handlers.Shutdown()
	logger.Info("shutdown complete")
	return err
}
