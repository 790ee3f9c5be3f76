package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/logging"
	maatmcp "github.com/ppiankov/maat/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs maat as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: evaluate platform, analyze statement, firewall check,\n" +
		"generate report, verify packet.",
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	srv, err := maatmcp.New(maatmcp.Config{
		PolicyPath:     cfg.PolicyPath,
		Generator:      e.gen,
		Adapter:        e.adapter,
		ExtraForbidden: cfg.ExtraForbiddenTerms,
		Version:        version,
		Logger:         logging.New("mcp"),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "maat MCP server running on stdio")
	return srv.Run(ctx)
}
