package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/firewall"
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportGenerateCmd, reportPreviewCmd, reportShowCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate and inspect case reports",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate <case_id>",
	Short: "Generate the report and seal it in an audit packet",
	Long: "Analyzes the newest artifact of each type, renders the report, gates it through\n" +
		"the vocabulary firewall and commits the audit packet. On any failure nothing is written.",
	Args: cobra.ExactArgs(1),
	RunE: runReportGenerate,
}

var reportPreviewCmd = &cobra.Command{
	Use:   "preview <case_id>",
	Short: "Render the report without persisting it and show firewall findings",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportPreview,
}

var reportShowCmd = &cobra.Command{
	Use:   "show <case_id>",
	Short: "Print the latest published report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

func runReportGenerate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.gen.Generate(context.Background(), args[0])
	if err != nil {
		return classified(err)
	}
	return printJSON(res)
}

func runReportPreview(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := context.Background()

	md, err := e.gen.Render(ctx, args[0])
	if err != nil {
		return classified(err)
	}
	fw, err := e.gen.CaseFirewall(ctx, args[0])
	if err != nil {
		return classified(err)
	}

	fmt.Print(md)
	if vs := fw.Validate(md); len(vs) > 0 {
		fmt.Fprintf(os.Stderr, "\nfirewall: %d violation(s): %v\n", len(vs), firewall.Codes(vs))
		return errViolations
	}
	return nil
}

func runReportShow(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	data, err := os.ReadFile(e.gen.ReportPath(args[0]))
	if os.IsNotExist(err) {
		return fmt.Errorf("no report published for case %s", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
