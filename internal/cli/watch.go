package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchPoll bool

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Poll the inbox instead of using filesystem events")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest artifacts dropped into the inbox",
	Long: "Watches <inbox_dir>/<case_id>/<type>/ and ingests every file that lands there.\n" +
		"Originals move to <state_dir>/ingested; failures move to <state_dir>/rejected\n" +
		"with a .error note.",
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	d, err := newInboxDaemon(e, watchPoll)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "maat watching %s\n", cfg.InboxDir)
	return d.Run(ctx)
}
