// Package ingest copies case artifacts into the data directory and records
// them in the store.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/maat/internal/store"
)

// MaxArtifactSize caps a single ingested file.
const MaxArtifactSize = 64 << 20

// ErrTooLarge is returned when a source file exceeds MaxArtifactSize.
var ErrTooLarge = errors.New("ingest: artifact exceeds size limit")

// Recorder is the subset of the store ingest writes to.
type Recorder interface {
	GetCase(ctx context.Context, caseID string) (*store.Case, error)
	AddArtifact(ctx context.Context, a store.Artifact) (*store.Artifact, error)
}

// Ingester stores artifacts under <DataDir>/<case_id>/<type>/<artifact_id><ext>.
type Ingester struct {
	DataDir string
	Store   Recorder
}

// File copies src into the data directory and records it.
func (in *Ingester) File(ctx context.Context, caseID, artifactType, src string) (*store.Artifact, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("ingest: open source: %w", err)
	}
	defer f.Close()
	return in.Reader(ctx, caseID, artifactType, filepath.Ext(src), f)
}

// Reader copies r into the data directory and records it. ext is the stored
// file extension, including the dot.
func (in *Ingester) Reader(ctx context.Context, caseID, artifactType, ext string, r io.Reader) (*store.Artifact, error) {
	if !store.ValidArtifactType(artifactType) {
		return nil, fmt.Errorf("ingest: unknown artifact type %q (want one of %s)",
			artifactType, strings.Join(store.ArtifactTypes, ", "))
	}
	if _, err := in.Store.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	if strings.ContainsAny(caseID, `/\`) || caseID == "." || caseID == ".." {
		return nil, fmt.Errorf("ingest: invalid case id %q", caseID)
	}

	dir := filepath.Join(in.DataDir, caseID, artifactType)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("ingest: create directory: %w", err)
	}

	id := store.NewArtifactID()
	dst := filepath.Join(dir, id+sanitizeExt(ext))
	sum, err := copyAtomic(dst, r)
	if err != nil {
		return nil, err
	}

	a, err := in.Store.AddArtifact(ctx, store.Artifact{
		ArtifactID: id,
		CaseID:     caseID,
		Type:       artifactType,
		Path:       dst,
		SHA256:     sum,
	})
	if err != nil {
		_ = os.Remove(dst)
		return nil, err
	}
	return a, nil
}

// copyAtomic writes r to dst through a temp file and returns the digest of
// the bytes written.
func copyAtomic(dst string, r io.Reader) (string, error) {
	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("ingest: create temp file: %w", err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), io.LimitReader(r, MaxArtifactSize+1))
	if err == nil && n > MaxArtifactSize {
		err = ErrTooLarge
	}
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("ingest: write artifact: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("ingest: rename to final: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sanitizeExt keeps a short alphanumeric extension.
func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return "." + ext
}
