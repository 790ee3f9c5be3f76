package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/maat/internal/audit"
	"github.com/ppiankov/maat/internal/firewall"
)

// Machine-readable error codes.
const (
	CodeCaseNotFound          = "case_not_found"
	CodeRulesetNotFound       = "ruleset_not_found"
	CodePlatformNotConfigured = "platform_not_configured"
	CodeInvalidPolicy         = "invalid_policy"
	CodeInvalidArtifact       = "invalid_artifact"
	CodeFirewallViolation     = "vocabulary_firewall_violation"
	CodeIntegrity             = "integrity_error"
	CodeInternal              = "internal_error"
)

// ConfigurationError aborts a generation before anything is written.
type ConfigurationError struct {
	Code   string
	Detail string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ComplianceViolation is returned when the firewall rejects a rendered report.
type ComplianceViolation struct {
	Violations []firewall.Violation
}

func (e *ComplianceViolation) Error() string {
	return fmt.Sprintf("%s: %s", CodeFirewallViolation, strings.Join(firewall.Codes(e.Violations), ", "))
}

// Outcome is the caller-facing classification of an error.
type Outcome struct {
	Status     int                  `json:"status"`
	Code       string               `json:"code"`
	Message    string               `json:"message"`
	Violations []firewall.Violation `json:"violations,omitempty"`
}

// ClientError reports whether the caller can correct the failure.
func (o Outcome) ClientError() bool { return o.Status >= 400 && o.Status < 500 }

// Classify maps an error to a status and code. Integrity and unexpected
// errors get a generic message so no hash or path detail leaks.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Status: 200, Code: "ok"}
	}

	var ce *ConfigurationError
	if errors.As(err, &ce) {
		status := 409
		switch ce.Code {
		case CodeCaseNotFound:
			status = 404
		case CodeInvalidPolicy, CodeInvalidArtifact:
			status = 422
		}
		return Outcome{Status: status, Code: ce.Code, Message: ce.Error()}
	}

	var cv *ComplianceViolation
	if errors.As(err, &cv) {
		return Outcome{Status: 422, Code: CodeFirewallViolation, Message: cv.Error(), Violations: cv.Violations}
	}

	var ie *audit.IntegrityError
	if errors.As(err, &ie) {
		return Outcome{Status: 500, Code: CodeIntegrity, Message: "audit packet integrity check failed"}
	}

	return Outcome{Status: 500, Code: CodeInternal, Message: "internal error"}
}
