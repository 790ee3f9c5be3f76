package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/audit"
)

var (
	tailLines     int
	historyCase   string
	historySince  string
	historyUntil  string
	historyFormat string
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd, ledgerTailCmd, ledgerHistoryCmd)
	ledgerTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	ledgerHistoryCmd.Flags().StringVar(&historyCase, "case", "", "Only packets for this case")
	ledgerHistoryCmd.Flags().StringVar(&historySince, "since", "", "Lower bound (YYYY-MM-DD or RFC 3339)")
	ledgerHistoryCmd.Flags().StringVar(&historyUntil, "until", "", "Upper bound (YYYY-MM-DD or RFC 3339)")
	ledgerHistoryCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text|json)")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Packet ledger operations",
	Long:  "Commands for verifying and inspecting the hash-chained JSONL ledger of committed audit packets.",
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of the ledger",
	Long:  "Walks the JSONL ledger and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLedgerVerify,
}

var ledgerTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent ledger entries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLedgerTail,
}

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show the packet timeline",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLedgerHistory,
}

func ledgerPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.LedgerPath
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(ledgerPath(args))
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	return fmt.Errorf("ledger chain broken")
}

func runLedgerTail(cmd *cobra.Command, args []string) error {
	f, err := os.Open(ledgerPath(args))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	start := len(lines) - tailLines
	if start < 0 {
		start = 0
	}

	for _, line := range lines[start:] {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Println(line)
			continue
		}
		out, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Println(string(out))
	}
	return nil
}

func runLedgerHistory(cmd *cobra.Command, args []string) error {
	filter := audit.HistoryFilter{CaseID: historyCase}
	var err error
	if filter.From, err = parseBound(historySince); err != nil {
		return err
	}
	if filter.To, err = parseBound(historyUntil); err != nil {
		return err
	}

	result, err := audit.History(ledgerPath(args), filter)
	if err != nil {
		return err
	}
	if historyFormat == "json" {
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(audit.FormatHistory(result))
	return nil
}

// parseBound accepts a date or an RFC 3339 timestamp. Empty means unbounded.
func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}
