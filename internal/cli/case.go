package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/audit"
	"github.com/ppiankov/maat/internal/store"
)

var (
	caseName         string
	caseJurisdiction string
	caseJudge        string
)

func init() {
	rootCmd.AddCommand(caseCmd)
	caseCmd.AddCommand(caseCreateCmd, caseListCmd, caseShowCmd)
	caseCreateCmd.Flags().StringVar(&caseName, "name", "", "Case name (required)")
	caseCreateCmd.Flags().StringVar(&caseJurisdiction, "jurisdiction", "", "Jurisdiction (required)")
	caseCreateCmd.Flags().StringVar(&caseJudge, "judge", "", "Presiding judge")
	_ = caseCreateCmd.MarkFlagRequired("name")
	_ = caseCreateCmd.MarkFlagRequired("jurisdiction")
}

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Create and inspect cases",
}

var caseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a case and print its id",
	Args:  cobra.NoArgs,
	RunE:  runCaseCreate,
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases",
	Args:  cobra.NoArgs,
	RunE:  runCaseList,
}

var caseShowCmd = &cobra.Command{
	Use:   "show <case_id>",
	Short: "Show a case with its active policy, artifacts and audit packets",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseShow,
}

func runCaseCreate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := e.store.CreateCase(context.Background(), caseName, caseJurisdiction, caseJudge)
	if err != nil {
		return err
	}
	return printJSON(c)
}

func runCaseList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	cases, err := e.store.ListCases(context.Background())
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Println("No cases.")
		return nil
	}
	for _, c := range cases {
		fmt.Printf("%s  %-32s %s\n", c.CaseID, c.Name, c.Jurisdiction)
	}
	return nil
}

// caseDetail is the `case show` view.
type caseDetail struct {
	Case         *store.Case      `json:"case"`
	PolicySHA256 string           `json:"active_policy_sha256,omitempty"`
	Artifacts    []store.Artifact `json:"artifacts"`
	Packets      []audit.Record   `json:"audit_packets"`
}

func runCaseShow(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := context.Background()

	c, err := e.store.GetCase(ctx, args[0])
	if err != nil {
		return err
	}
	d := caseDetail{Case: c}
	if pol, err := e.store.ActivePolicy(ctx, c.CaseID); err == nil {
		d.PolicySHA256 = pol.SHA256
	}
	if d.Artifacts, err = e.store.ListArtifacts(ctx, c.CaseID); err != nil {
		return err
	}
	if d.Packets, err = e.store.ListPackets(ctx, c.CaseID); err != nil {
		return err
	}
	return printJSON(d)
}
