package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/maat/internal/audit"
	"github.com/ppiankov/maat/internal/config"
	"github.com/ppiankov/maat/internal/ingest"
	"github.com/ppiankov/maat/internal/logging"
	"github.com/ppiankov/maat/internal/pipeline"
	"github.com/ppiankov/maat/internal/store"
	"github.com/ppiankov/maat/internal/vocab"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.maat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format override (text|json)")
}

var rootCmd = &cobra.Command{
	Use:   "maat",
	Short: "Rules-governed, tamper-evident case analysis",
	Long: "Turns case artifacts into a neutral, process-focused report under a per-case policy.\n" +
		"Every report is gated by a vocabulary firewall and sealed in a hash-attested audit packet.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if logFormat != "" {
		c.LogFormat = logFormat
	}
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logging.Init(level, c.LogFormat)
	cfg = c
	return nil
}

// env holds the handles shared by commands that touch the case store.
type env struct {
	store    *store.Store
	ledger   *audit.Log
	adapter  *vocab.Adapter
	gen      *pipeline.Generator
	ingester *ingest.Ingester
}

// openEnv opens the store and ledger named by cfg and wires the pipeline.
func openEnv() (*env, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	ledger, err := audit.Open(cfg.LedgerPath)
	if err != nil {
		s.Close()
		return nil, err
	}

	adapter := vocab.New(vocab.Config{
		Threshold:         cfg.InclusionThreshold,
		MaxItems:          cfg.MaxListItems,
		LengthFactorFloor: cfg.LengthFactorFloor,
		ExtraForbidden:    cfg.ExtraForbiddenTerms,
		Logger:            logging.New("vocab"),
	})
	gen := pipeline.New(pipeline.Config{
		DataDir:         cfg.DataDir,
		TemplateVersion: cfg.TemplateVersion,
		Store:           s,
		Builder: &audit.Builder{
			Dir:      cfg.DataDir,
			Recorder: s,
			Ledger:   ledger,
			Logger:   logging.New("audit"),
		},
		Adapter:        adapter,
		ExtraForbidden: cfg.ExtraForbiddenTerms,
		Logger:         logging.New("pipeline"),
	})

	return &env{
		store:    s,
		ledger:   ledger,
		adapter:  adapter,
		gen:      gen,
		ingester: &ingest.Ingester{DataDir: cfg.DataDir, Store: s},
	}, nil
}

func (e *env) Close() error {
	lerr := e.ledger.Close()
	if err := e.store.Close(); err != nil {
		return err
	}
	return lerr
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// classified reports a pipeline failure the way API callers see it: the
// outcome on stdout and a short error for the exit status.
func classified(err error) error {
	out := pipeline.Classify(err)
	_ = printJSON(out)
	return fmt.Errorf("%s", out.Code)
}
