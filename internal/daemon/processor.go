package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/maat/internal/logging"
	"github.com/ppiankov/maat/internal/store"
)

// Ingester stores one artifact file for a case.
type Ingester interface {
	File(ctx context.Context, caseID, artifactType, src string) (*store.Artifact, error)
}

// Processor ingests a single drop and moves the original out of the inbox.
type Processor struct {
	dirs     DirConfig
	ingester Ingester
	logger   *slog.Logger
	now      func() time.Time
}

// NewProcessor creates a processor.
func NewProcessor(dirs DirConfig, ingester Ingester, logger *slog.Logger) *Processor {
	return &Processor{
		dirs:     dirs,
		ingester: ingester,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
}

// Process ingests the drop at path. On success the original moves to
// state/ingested/<case_id>/<type>/<artifact_id>_<name>; on failure to
// state/rejected with a .error note. A path that no longer exists is a no-op.
func (p *Processor) Process(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	d, err := ParseDrop(p.dirs.Inbox, path)
	if err != nil {
		return p.reject(path, err)
	}

	a, err := p.ingester.File(ctx, d.CaseID, d.Type, d.Path)
	if err != nil {
		return p.reject(path, err)
	}

	dst := filepath.Join(p.dirs.IngestedDir(), d.CaseID, d.Type, a.ArtifactID+"_"+d.Name)
	if err := moveFile(path, dst); err != nil {
		return fmt.Errorf("move ingested drop: %w", err)
	}
	p.logger.Info("artifact ingested",
		"case_id", d.CaseID, "artifact_type", d.Type, "artifact_id", a.ArtifactID)
	return nil
}

// reject moves path to the rejected dir and records why. The returned error
// is the original cause.
func (p *Processor) reject(path string, cause error) error {
	name := p.now().UTC().Format("20060102T150405.000000000") + "_" + filepath.Base(path)
	dst := filepath.Join(p.dirs.RejectedDir(), name)
	if err := moveFile(path, dst); err != nil {
		p.logger.Error("reject drop failed", "path", path, "err", err)
	} else {
		_ = os.WriteFile(dst+".error", []byte(cause.Error()+"\n"), 0600)
	}
	p.logger.Warn("artifact rejected", "file", filepath.Base(path), "err", cause)
	return cause
}
