package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/store"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <case_id> <type> <file>",
	Short: "Store an artifact for a case",
	Long: "Copies the file into the data directory, hashes it and records it.\n" +
		"Types: " + strings.Join(store.ArtifactTypes, ", ") + ".\n" +
		"The newest artifact of each type is used by the next report.",
	Args: cobra.ExactArgs(3),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	a, err := e.ingester.File(context.Background(), args[0], args[1], args[2])
	if err != nil {
		return fmt.Errorf("ingest %s: %w", args[2], err)
	}
	return printJSON(a)
}
