package mcp

import (
	"context"
	"errors"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/maat/internal/audit"
	"github.com/ppiankov/maat/internal/firewall"
	"github.com/ppiankov/maat/internal/pipeline"
	"github.com/ppiankov/maat/internal/policy"
	"github.com/ppiankov/maat/internal/vocab"
)

var errNoCaseStore = errors.New("case store not configured")

// --- Input/Output types ---

// EvaluateInput defines parameters for the maat_evaluate_platform tool.
type EvaluateInput struct {
	CaseID   string `json:"case_id,omitempty" jsonschema:"case whose active policy applies; omit to use the default policy file"`
	Platform string `json:"platform" jsonschema:"platform name, e.g. twitter"`
}

// EvaluateOutput contains the permission decision.
type EvaluateOutput struct {
	Platform       string            `json:"platform"`
	Allowed        bool              `json:"allowed"`
	Reason         string            `json:"reason"`
	PolicyID       string            `json:"policy_id,omitempty"`
	ContactAllowed bool              `json:"contact_allowed"`
	Error          *pipeline.Outcome `json:"error,omitempty"`
}

// AnalyzeInput defines parameters for the maat_analyze_statement tool.
type AnalyzeInput struct {
	Text string `json:"text" jsonschema:"statement text"`
}

// FirewallInput defines parameters for the maat_firewall_check tool.
type FirewallInput struct {
	CaseID string `json:"case_id,omitempty" jsonschema:"case whose policy forbidden terms apply"`
	Text   string `json:"text" jsonschema:"text to check"`
}

// FirewallOutput lists the violations found.
type FirewallOutput struct {
	Passed     bool                 `json:"passed"`
	Codes      []string             `json:"codes"`
	Violations []firewall.Violation `json:"violations"`
	Error      *pipeline.Outcome    `json:"error,omitempty"`
}

// GenerateInput defines parameters for the maat_generate_report tool.
type GenerateInput struct {
	CaseID string `json:"case_id" jsonschema:"case to generate the report for"`
}

// GenerateOutput contains the committed generation or the failure.
type GenerateOutput struct {
	Result *pipeline.Result  `json:"result,omitempty"`
	Error  *pipeline.Outcome `json:"error,omitempty"`
}

// VerifyInput defines parameters for the maat_verify_packet tool.
type VerifyInput struct {
	Path string `json:"path" jsonschema:"path to an audit packet zip"`
}

// --- Handlers ---

// failed marks a result as a tool error and returns the classified outcome.
func (s *Server) failed(tool string, err error) (*mcpsdk.CallToolResult, *pipeline.Outcome) {
	out := pipeline.Classify(err)
	if !out.ClientError() {
		s.logger.Error("tool failed", "tool", tool, "code", out.Code, "error", err)
	}
	return &mcpsdk.CallToolResult{IsError: true}, &out
}

func (s *Server) handleEvaluate(ctx context.Context, req *mcpsdk.CallToolRequest, input EvaluateInput) (*mcpsdk.CallToolResult, EvaluateOutput, error) {
	platform := strings.TrimSpace(input.Platform)
	if platform == "" {
		return nil, EvaluateOutput{}, errors.New("platform is required")
	}

	var (
		r   policy.Result
		err error
	)
	switch {
	case input.CaseID != "":
		if s.gen == nil {
			return nil, EvaluateOutput{}, errNoCaseStore
		}
		r, err = s.gen.EvaluatePlatform(ctx, input.CaseID, platform)
	case s.doc == nil:
		err = &pipeline.ConfigurationError{Code: pipeline.CodeRulesetNotFound}
	default:
		r = policy.Evaluate(s.doc, platform)
		if r.Reason == policy.ReasonNotConfigured {
			err = &pipeline.ConfigurationError{Code: pipeline.CodePlatformNotConfigured, Detail: platform}
		}
	}

	out := EvaluateOutput{
		Platform:       platform,
		Allowed:        r.Allowed,
		Reason:         string(r.Reason),
		PolicyID:       r.PolicyID,
		ContactAllowed: policy.ContactAllowed(),
	}
	if err != nil {
		out.Allowed = false
		res, outcome := s.failed(ToolEvaluatePlatform, err)
		out.Error = outcome
		return res, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleAnalyze(ctx context.Context, req *mcpsdk.CallToolRequest, input AnalyzeInput) (*mcpsdk.CallToolResult, vocab.Summary, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, vocab.Summary{}, errors.New("text is required")
	}
	sum := s.adapter.Summarize(input.Text)
	if sum.Degraded() {
		return &mcpsdk.CallToolResult{IsError: true}, sum, nil
	}
	return nil, sum, nil
}

func (s *Server) handleFirewall(ctx context.Context, req *mcpsdk.CallToolRequest, input FirewallInput) (*mcpsdk.CallToolResult, FirewallOutput, error) {
	var fw *firewall.Firewall
	if input.CaseID != "" {
		if s.gen == nil {
			return nil, FirewallOutput{}, errNoCaseStore
		}
		var err error
		if fw, err = s.gen.CaseFirewall(ctx, input.CaseID); err != nil {
			res, outcome := s.failed(ToolFirewallCheck, err)
			return res, FirewallOutput{Error: outcome}, nil
		}
	} else {
		var terms []string
		if s.doc != nil {
			terms = s.doc.Rules.Outputs.ForbiddenTerms
		}
		fw = firewall.New(terms, s.extra)
	}

	vs := fw.Validate(input.Text)
	out := FirewallOutput{
		Passed:     len(vs) == 0,
		Codes:      firewall.Codes(vs),
		Violations: vs,
	}
	if out.Codes == nil {
		out.Codes = []string{}
	}
	if out.Violations == nil {
		out.Violations = []firewall.Violation{}
	}
	return nil, out, nil
}

func (s *Server) handleGenerate(ctx context.Context, req *mcpsdk.CallToolRequest, input GenerateInput) (*mcpsdk.CallToolResult, GenerateOutput, error) {
	if input.CaseID == "" {
		return nil, GenerateOutput{}, errors.New("case_id is required")
	}
	if s.gen == nil {
		return nil, GenerateOutput{}, errNoCaseStore
	}
	r, err := s.gen.Generate(ctx, input.CaseID)
	if err != nil {
		res, outcome := s.failed(ToolGenerateReport, err)
		return res, GenerateOutput{Error: outcome}, nil
	}
	s.logger.Info("report generated", "case_id", r.CaseID, "audit_id", r.AuditID)
	return nil, GenerateOutput{Result: r}, nil
}

func (s *Server) handleVerify(ctx context.Context, req *mcpsdk.CallToolRequest, input VerifyInput) (*mcpsdk.CallToolResult, audit.PacketResult, error) {
	if input.Path == "" {
		return nil, audit.PacketResult{}, errors.New("path is required")
	}
	r := audit.VerifyPacket(input.Path)
	if !r.Valid {
		return &mcpsdk.CallToolResult{IsError: true}, r, nil
	}
	return nil, r, nil
}
