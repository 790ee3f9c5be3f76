package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/analyze"
	"github.com/ppiankov/maat/internal/vocab"
)

var analyzeForensics bool

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeForensics, "forensics", false, "Also print transcript cue counts, phase estimate and unresolved items")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Print the statement consistency summary for a text",
	Long:  "Reads a statement from the file, or stdin when no file or \"-\" is given,\nand prints the court-safe summary. Raw scores never leave the process.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text, err := readInput(args)
	if err != nil {
		return err
	}

	adapter := vocab.New(vocab.Config{
		Threshold:         cfg.InclusionThreshold,
		MaxItems:          cfg.MaxListItems,
		LengthFactorFloor: cfg.LengthFactorFloor,
		ExtraForbidden:    cfg.ExtraForbiddenTerms,
	})
	sum := adapter.Summarize(text)

	if !analyzeForensics {
		return printJSON(sum)
	}
	return printJSON(struct {
		Summary   vocab.Summary     `json:"summary"`
		Forensics analyze.Forensics `json:"forensics"`
	}{sum, analyze.Transcript(text)})
}

// readInput returns the named file's contents, or stdin for none or "-".
func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}
