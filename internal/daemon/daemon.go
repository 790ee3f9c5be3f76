package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ppiankov/maat/internal/logging"
)

// Config holds the inbox watcher configuration.
type Config struct {
	Dirs         DirConfig
	Ingester     Ingester
	Workers      int
	PollMode     bool
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Daemon watches the inbox directory and ingests drops.
type Daemon struct {
	cfg       Config
	processor *Processor
	logger    *slog.Logger
}

// New creates a daemon with validated configuration.
func New(cfg Config) (*Daemon, error) {
	if cfg.Dirs.Inbox == "" || cfg.Dirs.State == "" {
		return nil, fmt.Errorf("inbox and state directories are required")
	}
	if cfg.Ingester == nil {
		return nil, fmt.Errorf("ingester is required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollDefault
	}
	logger := logging.OrDiscard(cfg.Logger)
	return &Daemon{
		cfg:       cfg,
		processor: NewProcessor(cfg.Dirs, cfg.Ingester, logger),
		logger:    logger,
	}, nil
}

// Run starts watching. Blocks until ctx is cancelled. Drops present at
// startup are ingested first.
func (d *Daemon) Run(ctx context.Context) error {
	if err := EnsureDirs(d.cfg.Dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	if err := ValidateSameFilesystem(d.cfg.Dirs); err != nil {
		d.logger.Warn("inbox moves will copy", "err", err)
	}

	pidPath := filepath.Join(d.cfg.Dirs.State, "watch.pid")
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	handler := func(path string) {
		_ = d.processor.Process(ctx, path)
	}

	if err := ScanExisting(d.cfg.Dirs.Inbox, handler); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	d.logger.Info("inbox watcher started", "inbox", d.cfg.Dirs.Inbox, "poll", d.cfg.PollMode)
	if d.cfg.PollMode {
		return NewPollWatcher(d.cfg.Dirs.Inbox, handler, d.cfg.PollInterval).Run(ctx)
	}
	return NewInboxWatcher(d.cfg.Dirs.Inbox, d.cfg.Workers, d.logger, handler).Run(ctx)
}

// acquirePIDLock writes the current PID to the file and checks for stale locks.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(string(data))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another watcher is running (PID %d)", pid)
				}
			}
		}
		// Stale PID file.
		_ = os.Remove(path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}
