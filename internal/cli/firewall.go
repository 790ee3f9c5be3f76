package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/firewall"
	"github.com/ppiankov/maat/internal/policy"
)

var (
	firewallCase string
	firewallJSON bool
)

// errViolations makes a failed check exit non-zero after printing.
var errViolations = errors.New("vocabulary firewall violations found")

func init() {
	rootCmd.AddCommand(firewallCmd)
	firewallCmd.AddCommand(firewallCheckCmd, firewallTermsCmd)
	firewallCheckCmd.Flags().StringVar(&firewallCase, "case", "", "Apply the case's active policy terms")
	firewallCheckCmd.Flags().BoolVar(&firewallJSON, "json", false, "Print violations as JSON")
	firewallTermsCmd.Flags().StringVar(&firewallCase, "case", "", "Include the case's active policy terms")
}

var firewallCmd = &cobra.Command{
	Use:   "firewall",
	Short: "Output vocabulary firewall",
}

var firewallCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check text against the firewall",
	Long:  "Scans the file (or stdin) for forbidden terms and causal phrasing.\nExits 1 when any violation is found. Text is never rewritten.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFirewallCheck,
}

var firewallTermsCmd = &cobra.Command{
	Use:   "terms",
	Short: "List the forbidden terms in effect",
	Args:  cobra.NoArgs,
	RunE:  runFirewallTerms,
}

func buildFirewall() (*firewall.Firewall, error) {
	if firewallCase != "" {
		e, err := openEnv()
		if err != nil {
			return nil, err
		}
		defer e.Close()
		fw, err := e.gen.CaseFirewall(context.Background(), firewallCase)
		if err != nil {
			return nil, classified(err)
		}
		return fw, nil
	}
	var terms []string
	if doc, err := policy.LoadFile(cfg.PolicyPath, ""); err == nil {
		terms = doc.Rules.Outputs.ForbiddenTerms
	}
	return firewall.New(terms, cfg.ExtraForbiddenTerms), nil
}

func runFirewallCheck(cmd *cobra.Command, args []string) error {
	text, err := readInput(args)
	if err != nil {
		return err
	}
	fw, err := buildFirewall()
	if err != nil {
		return err
	}

	vs := fw.Validate(text)
	if firewallJSON {
		if vs == nil {
			vs = []firewall.Violation{}
		}
		if err := printJSON(map[string]any{"passed": len(vs) == 0, "violations": vs}); err != nil {
			return err
		}
	} else if len(vs) == 0 {
		fmt.Println("OK: no violations")
	} else {
		for _, v := range vs {
			fmt.Printf("offset %-6d %s\n", v.Offset, v)
		}
	}
	if len(vs) > 0 {
		return errViolations
	}
	return nil
}

func runFirewallTerms(cmd *cobra.Command, args []string) error {
	fw, err := buildFirewall()
	if err != nil {
		return err
	}
	for _, t := range fw.Terms() {
		fmt.Println(t)
	}
	return nil
}
