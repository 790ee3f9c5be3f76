package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/audit"
)

var auditJSON bool

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditVerifyCmd.Flags().BoolVar(&auditJSON, "json", false, "Print the verification result as JSON")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit packet operations",
	Long:  "Commands for verifying and inspecting audit packets (zip archives of report, inputs and manifest).",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <packet.zip>",
	Short: "Verify every digest in an audit packet",
	Long:  "Re-hashes the report copy and every input copy in the packet and checks them\nagainst the manifest and hashes.json. Exits 0 if intact, 1 otherwise.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditShowCmd = &cobra.Command{
	Use:   "show <packet.zip>",
	Short: "Print the manifest stored in an audit packet",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.VerifyPacket(args[0])
	if auditJSON {
		if err := printJSON(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Printf("OK: packet %s verified (%d inputs)\n", result.AuditID, result.Inputs)
	} else {
		fmt.Fprintf(os.Stderr, "FAILED: %s\n", result.Error)
	}
	if !result.Valid {
		return fmt.Errorf("packet verification failed")
	}
	return nil
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	m, err := audit.ReadManifest(args[0])
	if err != nil {
		return err
	}
	return printJSON(m)
}
