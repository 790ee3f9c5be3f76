package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/pipeline"
	"github.com/ppiankov/maat/internal/policy"
	"github.com/ppiankov/maat/internal/policydiff"
)

var (
	policyName     string
	policyOutput   string
	policyForce    bool
	policyCase     string
	policyFile     string
	policyDiffCase string
	diffFormat     string
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyInitCmd, policyAddCmd, policyShowCmd, policyHistoryCmd, policyEvaluateCmd, policyDiffCmd)

	policyInitCmd.Flags().StringVarP(&policyOutput, "output", "o", "", "Write to this path instead of the configured policy_path")
	policyInitCmd.Flags().BoolVar(&policyForce, "force", false, "Overwrite an existing file")

	policyAddCmd.Flags().StringVar(&policyName, "name", "", "Override the document name")

	policyEvaluateCmd.Flags().StringVar(&policyCase, "case", "", "Evaluate against the case's active policy")
	policyEvaluateCmd.Flags().StringVar(&policyFile, "file", "", "Evaluate against a policy file (default: configured policy_path)")

	policyDiffCmd.Flags().StringVar(&policyDiffCase, "case", "", "Compare the case's two most recent revisions")
	policyDiffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage per-case policy documents",
	Long: "Policy documents are immutable. Adding a document supersedes the previous one;\n" +
		"the most recently added document is the active policy for the case.",
}

var policyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default policy.yaml with comments",
	Args:  cobra.NoArgs,
	RunE:  runPolicyInit,
}

var policyAddCmd = &cobra.Command{
	Use:   "add <case_id> <policy.yaml>",
	Short: "Add a policy revision to a case and make it active",
	Args:  cobra.ExactArgs(2),
	RunE:  runPolicyAdd,
}

var policyShowCmd = &cobra.Command{
	Use:   "show <case_id>",
	Short: "Show the active policy for a case",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyShow,
}

var policyHistoryCmd = &cobra.Command{
	Use:   "history <case_id>",
	Short: "List every policy revision for a case, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyHistory,
}

var policyEvaluateCmd = &cobra.Command{
	Use:   "evaluate [platform...]",
	Short: "Evaluate platform permissions",
	Long: "Prints the decision for each named platform, or for every configured platform\n" +
		"when none is given. Direct contact with a subject is never permitted.",
	RunE: runPolicyEvaluate,
}

var policyDiffCmd = &cobra.Command{
	Use:   "diff [old.yaml new.yaml]",
	Short: "Compare two policy documents and show changes",
	Long: "Shows what changed between two documents in human-readable terms:\n" +
		"judge override, forbidden terms and per-platform rules with their decisions.",
	RunE: runPolicyDiff,
}

func runPolicyInit(cmd *cobra.Command, args []string) error {
	path := policyOutput
	if path == "" {
		path = cfg.PolicyPath
	}
	if !policyForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create policy directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(policy.DefaultDocumentYAML()), 0o644); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

func runPolicyAdd(cmd *cobra.Command, args []string) error {
	doc, err := policy.LoadFile(args[1], policyName)
	if err != nil {
		return classified(&pipeline.ConfigurationError{Code: pipeline.CodeInvalidPolicy, Detail: err.Error(), Err: err})
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.store.AddPolicy(context.Background(), args[0], doc)
	if err != nil {
		return err
	}
	fmt.Printf("Policy %s active for case %s (sha256 %s)\n", rec.PolicyID, rec.CaseID, rec.SHA256)
	return nil
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.store.ActivePolicy(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runPolicyHistory(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	recs, err := e.store.ListPolicies(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No policies.")
		return nil
	}
	for i, r := range recs {
		marker := " "
		if i == len(recs)-1 {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  %s@%s  %s\n", marker, r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.PolicyID, r.Document.Name, r.Document.Version, r.SHA256[:12])
	}
	return nil
}

// evaluation is the `policy evaluate` view.
type evaluation struct {
	PolicySHA256   string          `json:"policy_sha256"`
	ContactAllowed bool            `json:"contact_allowed"`
	Results        []policy.Result `json:"results"`
}

func runPolicyEvaluate(cmd *cobra.Command, args []string) error {
	doc, err := evaluationDocument()
	if err != nil {
		return err
	}

	ev := evaluation{PolicySHA256: doc.SHA256(), ContactAllowed: policy.ContactAllowed()}
	if len(args) == 0 {
		ev.Results = policy.EvaluateAll(doc)
	}
	for _, p := range args {
		ev.Results = append(ev.Results, policy.Evaluate(doc, p))
	}
	return printJSON(ev)
}

func evaluationDocument() (*policy.Document, error) {
	if policyCase != "" {
		e, err := openEnv()
		if err != nil {
			return nil, err
		}
		defer e.Close()
		rec, err := e.store.ActivePolicy(context.Background(), policyCase)
		if err != nil {
			return nil, err
		}
		return rec.Document, nil
	}
	path := policyFile
	if path == "" {
		path = cfg.PolicyPath
	}
	return policy.LoadFile(path, "")
}

func runPolicyDiff(cmd *cobra.Command, args []string) error {
	var (
		oldDoc, newDoc *policy.Document
		oldRef, newRef string
	)
	switch {
	case policyDiffCase != "":
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		recs, err := e.store.ListPolicies(context.Background(), policyDiffCase)
		if err != nil {
			return err
		}
		if len(recs) < 2 {
			return errors.New("case has fewer than two policy revisions")
		}
		prev, cur := recs[len(recs)-2], recs[len(recs)-1]
		oldDoc, newDoc = prev.Document, cur.Document
		oldRef, newRef = prev.PolicyID, cur.PolicyID
	case len(args) == 2:
		var err error
		if oldDoc, err = policy.LoadFile(args[0], ""); err != nil {
			return fmt.Errorf("load old policy: %w", err)
		}
		if newDoc, err = policy.LoadFile(args[1], ""); err != nil {
			return fmt.Errorf("load new policy: %w", err)
		}
		oldRef, newRef = args[0], args[1]
	default:
		return errors.New("give two policy files or --case")
	}

	result := policydiff.Diff(oldDoc, newDoc)
	result.OldRef = oldRef
	result.NewRef = newRef

	switch diffFormat {
	case "json":
		out, err := policydiff.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(policydiff.FormatText(result))
	}
	return nil
}
