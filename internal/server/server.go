// Package server exposes case evaluation, analysis, firewall validation,
// generation and packet verification over gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/maat/internal/audit"
	"github.com/ppiankov/maat/internal/firewall"
	"github.com/ppiankov/maat/internal/logging"
	"github.com/ppiankov/maat/internal/pipeline"
	"github.com/ppiankov/maat/internal/policy"
	"github.com/ppiankov/maat/internal/vocab"
)

// Config holds gRPC server configuration.
type Config struct {
	Port int
	// PolicyPath is the fallback policy for requests without a case_id.
	// A missing file leaves the server without one.
	PolicyPath     string
	Generator      *pipeline.Generator
	Adapter        *vocab.Adapter
	ExtraForbidden []string
	Logger         *slog.Logger
}

// Server implements CaseService.
type Server struct {
	mu         sync.RWMutex
	doc        *policy.Document
	policyHash string

	cfg        Config
	logger     *slog.Logger
	grpcServer *grpc.Server
}

// New creates a gRPC server and loads the fallback policy.
func New(cfg Config) (*Server, error) {
	if cfg.Adapter == nil {
		cfg.Adapter = vocab.New(vocab.Config{ExtraForbidden: cfg.ExtraForbidden, Logger: cfg.Logger})
	}
	s := &Server{
		cfg:        cfg,
		logger:     logging.OrDiscard(cfg.Logger).With("component", "grpc"),
		grpcServer: grpc.NewServer(),
	}
	if err := s.ReloadPolicy(); err != nil {
		return nil, err
	}
	s.grpcServer.RegisterService(&ServiceDesc, s)
	return s, nil
}

// Serve starts the gRPC server on the configured port. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	s.logger.Info("listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

// ServeOn starts the gRPC server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// ReloadPolicy atomically swaps the fallback policy. Called by the
// hot-reloader on file change.
func (s *Server) ReloadPolicy() error {
	if s.cfg.PolicyPath == "" {
		return nil
	}
	doc, err := policy.LoadFile(s.cfg.PolicyPath, "")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	s.mu.Lock()
	s.doc = doc
	s.policyHash = doc.SHA256()
	s.mu.Unlock()
	return nil
}

func (s *Server) fallback() (*policy.Document, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.policyHash
}

// Evaluate decides whether a platform may be used. With a case_id the
// case's active policy applies, otherwise the fallback policy.
func (s *Server) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	platform := field(req, "platform")
	if platform == "" {
		return nil, status.Error(codes.InvalidArgument, "platform is required")
	}

	if caseID := field(req, "case_id"); caseID != "" {
		if s.cfg.Generator == nil {
			return nil, status.Error(codes.Unavailable, "case store not configured")
		}
		r, err := s.cfg.Generator.EvaluatePlatform(ctx, caseID, platform)
		if err != nil {
			return nil, s.toStatus("Evaluate", err)
		}
		return decision(r, "")
	}

	doc, hash := s.fallback()
	if doc == nil {
		return nil, status.Error(codes.FailedPrecondition, pipeline.CodeRulesetNotFound)
	}
	r := policy.Evaluate(doc, platform)
	if r.Reason == policy.ReasonNotConfigured {
		return nil, status.Error(codes.FailedPrecondition, pipeline.CodePlatformNotConfigured+": "+platform)
	}
	return decision(r, hash)
}

func decision(r policy.Result, policyHash string) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"platform":        r.Platform,
		"allowed":         r.Allowed,
		"reason":          string(r.Reason),
		"policy_id":       r.PolicyID,
		"policy_sha256":   policyHash,
		"contact_allowed": policy.ContactAllowed(),
	})
}

// Analyze returns the court-safe statement summary for text.
func (s *Server) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := field(req, "text")
	if text == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	return toStruct(s.cfg.Adapter.Summarize(text))
}

// Validate runs text through the output firewall. With a case_id the
// case policy's forbidden terms apply.
func (s *Server) Validate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := field(req, "text")

	var fw *firewall.Firewall
	if caseID := field(req, "case_id"); caseID != "" && s.cfg.Generator != nil {
		var err error
		if fw, err = s.cfg.Generator.CaseFirewall(ctx, caseID); err != nil {
			return nil, s.toStatus("Validate", err)
		}
	} else {
		var terms []string
		if doc, _ := s.fallback(); doc != nil {
			terms = doc.Rules.Outputs.ForbiddenTerms
		}
		fw = firewall.New(terms, s.cfg.ExtraForbidden)
	}

	vs := fw.Validate(text)
	if vs == nil {
		vs = []firewall.Violation{}
	}
	return toStruct(map[string]any{
		"passed":     len(vs) == 0,
		"codes":      firewall.Codes(vs),
		"violations": vs,
	})
}

// Generate runs a full generation for a case.
func (s *Server) Generate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caseID := field(req, "case_id")
	if caseID == "" {
		return nil, status.Error(codes.InvalidArgument, "case_id is required")
	}
	if s.cfg.Generator == nil {
		return nil, status.Error(codes.Unavailable, "case store not configured")
	}
	res, err := s.cfg.Generator.Generate(ctx, caseID)
	if err != nil {
		return nil, s.toStatus("Generate", err)
	}
	s.logger.Info("report generated", "case_id", caseID, "audit_id", res.AuditID)
	return toStruct(res)
}

// VerifyPacket re-derives every digest in an audit packet on disk.
func (s *Server) VerifyPacket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := field(req, "path")
	if path == "" {
		return nil, status.Error(codes.InvalidArgument, "path is required")
	}
	return toStruct(audit.VerifyPacket(path))
}

// toStatus maps a pipeline error onto a gRPC status. Server-side failures
// are logged with full detail; callers only see the classified message.
func (s *Server) toStatus(method string, err error) error {
	out := pipeline.Classify(err)
	var code codes.Code
	switch {
	case out.Status == 404:
		code = codes.NotFound
	case out.Status == 409:
		code = codes.FailedPrecondition
	case out.Status == 422:
		code = codes.InvalidArgument
	default:
		code = codes.Internal
		s.logger.Error("request failed", "method", method, "code", out.Code, "error", err)
	}
	return status.Error(code, out.Message)
}
