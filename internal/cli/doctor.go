package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/audit"
	"github.com/ppiankov/maat/internal/integrity"
	"github.com/ppiankov/maat/internal/policy"
	"github.com/ppiankov/maat/internal/store"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, store and ledger health",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []checkResult

	// 1. Binary location, version and checksum.
	st, err := integrity.Checker{TamperLogDir: cfg.StateDir}.Verify()
	switch {
	case err != nil:
		checks = append(checks, checkResult{label: "maat binary", ok: false, detail: err.Error(), fix: "reinstall maat"})
	case !st.Verified:
		checks = append(checks, checkResult{label: "maat binary", ok: true, detail: fmt.Sprintf("%s (v%s, unverified)", st.Binary, version)})
	default:
		checks = append(checks, checkResult{label: "maat binary", ok: true, detail: fmt.Sprintf("%s (v%s, sha256 %s)", st.Binary, version, st.ActualHash[:12])})
	}

	// 2. Default policy.
	if doc, err := policy.LoadFile(cfg.PolicyPath, ""); err == nil {
		checks = append(checks, checkResult{
			label:  "policy.yaml",
			ok:     true,
			detail: fmt.Sprintf("%s (%d platforms)", doc.Name, len(doc.Platforms())),
		})
	} else if errors.Is(err, os.ErrNotExist) {
		checks = append(checks, checkResult{
			label:  "policy.yaml",
			ok:     false,
			detail: "missing",
			fix:    "maat init",
		})
	} else {
		checks = append(checks, checkResult{
			label:  "policy.yaml",
			ok:     false,
			detail: err.Error(),
			fix:    "maat policy init --force",
		})
	}

	// 3. Case store.
	if s, err := store.Open(cfg.DBPath); err == nil {
		cases, lerr := s.ListCases(context.Background())
		s.Close()
		if lerr == nil {
			checks = append(checks, checkResult{label: "case store", ok: true, detail: fmt.Sprintf("%s (%d cases)", cfg.DBPath, len(cases))})
		} else {
			checks = append(checks, checkResult{label: "case store", ok: false, detail: lerr.Error()})
		}
	} else {
		checks = append(checks, checkResult{label: "case store", ok: false, detail: err.Error(), fix: "check db_path"})
	}

	// 4. Ledger chain.
	if _, err := os.Stat(cfg.LedgerPath); err != nil {
		checks = append(checks, checkResult{label: "ledger", ok: true, detail: "empty"})
	} else if v := audit.Verify(cfg.LedgerPath); v.Valid {
		checks = append(checks, checkResult{label: "ledger", ok: true, detail: fmt.Sprintf("%d entries, chain intact", v.Lines)})
	} else {
		checks = append(checks, checkResult{
			label:  "ledger",
			ok:     false,
			detail: fmt.Sprintf("broken at line %d: %s", v.ErrorLine, v.Error),
			fix:    "maat ledger verify",
		})
	}

	// 5. Inbox.
	if info, err := os.Stat(cfg.InboxDir); err == nil && info.IsDir() {
		checks = append(checks, checkResult{label: "inbox", ok: true, detail: cfg.InboxDir})
	} else {
		checks = append(checks, checkResult{label: "inbox", ok: false, detail: "missing", fix: "maat init"})
	}

	// Print results.
	hasFailures := false
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Println(line)
	}

	if hasFailures {
		fmt.Println()
		fmt.Println("Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}
