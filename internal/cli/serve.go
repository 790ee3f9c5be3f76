package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/maat/internal/daemon"
	"github.com/ppiankov/maat/internal/integrity"
	"github.com/ppiankov/maat/internal/logging"
	"github.com/ppiankov/maat/internal/server"
)

var (
	servePort  int
	serveWatch bool
	servePoll  bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "gRPC listen port (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Also ingest files dropped into the inbox")
	serveCmd.Flags().BoolVar(&servePoll, "poll", false, "Poll the inbox instead of using filesystem events")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC case server",
	Long: "Runs maat as a gRPC server exposing Evaluate, Analyze, Validate, Generate and\n" +
		"VerifyPacket. The default policy file is hot-reloaded. With --watch the inbox\n" +
		"is ingested in the same process.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// A server that seals audit packets refuses to run from a modified binary.
	if _, err := (integrity.Checker{TamperLogDir: cfg.StateDir, Logger: logging.New("integrity")}).Verify(); err != nil {
		return err
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	port := servePort
	if port == 0 {
		port = cfg.GRPCPort
	}
	logger := logging.New("serve")

	srv, err := server.New(server.Config{
		Port:           port,
		PolicyPath:     cfg.PolicyPath,
		Generator:      e.gen,
		Adapter:        e.adapter,
		ExtraForbidden: cfg.ExtraForbiddenTerms,
		Logger:         logging.New("grpc"),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	reloader, err := server.NewReloader(srv, []string{cfg.PolicyPath})
	if err != nil {
		logger.Warn("hot-reload disabled", "err", err)
	}

	var inbox *daemon.Daemon
	if serveWatch {
		if inbox, err = newInboxDaemon(e, servePoll); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Serve)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.GracefulStop()
		return nil
	})
	if reloader != nil {
		g.Go(func() error { return reloader.Run(ctx) })
	}
	if inbox != nil {
		g.Go(func() error { return inbox.Run(ctx) })
	}

	fmt.Fprintf(os.Stderr, "maat case server listening on :%d\n", port)
	if reloader != nil && len(reloader.Paths()) > 0 {
		fmt.Fprintf(os.Stderr, "Policy: %s (hot-reload enabled)\n", cfg.PolicyPath)
	}
	if serveWatch {
		fmt.Fprintf(os.Stderr, "Inbox: %s\n", cfg.InboxDir)
	}
	fmt.Fprintln(os.Stderr)

	return g.Wait()
}

func newInboxDaemon(e *env, poll bool) (*daemon.Daemon, error) {
	return daemon.New(daemon.Config{
		Dirs:     daemon.DirConfig{Inbox: cfg.InboxDir, State: cfg.StateDir},
		Ingester: e.ingester,
		Workers:  cfg.InboxWorkers,
		PollMode: poll,
		Logger:   logging.New("inbox"),
	})
}
