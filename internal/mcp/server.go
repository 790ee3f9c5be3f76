// Package mcp exposes the case pipeline as MCP tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/maat/internal/logging"
	"github.com/ppiankov/maat/internal/pipeline"
	"github.com/ppiankov/maat/internal/policy"
	"github.com/ppiankov/maat/internal/vocab"
)

// Tool names.
const (
	ToolEvaluatePlatform = "maat_evaluate_platform"
	ToolAnalyzeStatement = "maat_analyze_statement"
	ToolFirewallCheck    = "maat_firewall_check"
	ToolGenerateReport   = "maat_generate_report"
	ToolVerifyPacket     = "maat_verify_packet"
)

// Config holds MCP server configuration.
type Config struct {
	// PolicyPath is used by tools called without a case_id. Optional.
	PolicyPath     string
	Generator      *pipeline.Generator
	Adapter        *vocab.Adapter
	ExtraForbidden []string
	Version        string
	Logger         *slog.Logger
}

// Server wraps the MCP SDK server with the case pipeline.
type Server struct {
	mcpServer *mcpsdk.Server
	gen       *pipeline.Generator
	adapter   *vocab.Adapter
	doc       *policy.Document
	extra     []string
	logger    *slog.Logger
}

// New creates an MCP server with its tools registered.
func New(cfg Config) (*Server, error) {
	var doc *policy.Document
	if cfg.PolicyPath != "" {
		d, err := policy.LoadFile(cfg.PolicyPath, "")
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to load policy: %w", err)
		default:
			doc = d
		}
	}

	adapter := cfg.Adapter
	if adapter == nil {
		adapter = vocab.New(vocab.Config{ExtraForbidden: cfg.ExtraForbidden, Logger: cfg.Logger})
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		gen:     cfg.Generator,
		adapter: adapter,
		doc:     doc,
		extra:   cfg.ExtraForbidden,
		logger:  logging.OrDiscard(cfg.Logger).With("component", "mcp"),
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "maat",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all maat tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolEvaluatePlatform,
		Description: "Decide whether public data from a platform may be used under the case policy. Direct contact is never permitted.",
	}, s.handleEvaluate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolAnalyzeStatement,
		Description: "Return the court-safe consistency summary for a statement.",
	}, s.handleAnalyze)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolFirewallCheck,
		Description: "Check text against the output vocabulary firewall without persisting anything.",
	}, s.handleFirewall)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolGenerateReport,
		Description: "Generate the case report and its tamper-evident audit packet.",
	}, s.handleGenerate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolVerifyPacket,
		Description: "Re-derive every digest in an audit packet and report whether it is intact.",
	}, s.handleVerify)
}
