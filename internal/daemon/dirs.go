package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// dirPerm is the permission for watcher-managed directories.
const dirPerm = 0750

// DirConfig holds the inbox layout.
type DirConfig struct {
	Inbox string // <inbox>/<case_id>/<type>/<file>
	State string // state/{ingested,rejected}
}

// IngestedDir holds originals of successfully ingested drops.
func (d DirConfig) IngestedDir() string {
	return filepath.Join(d.State, "ingested")
}

// RejectedDir holds drops that could not be ingested, each with a .error note.
func (d DirConfig) RejectedDir() string {
	return filepath.Join(d.State, "rejected")
}

// EnsureDirs creates all required directories. Idempotent.
func EnsureDirs(cfg DirConfig) error {
	for _, dir := range []string{cfg.Inbox, cfg.IngestedDir(), cfg.RejectedDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ValidateSameFilesystem reports whether inbox and state share a device, so
// moves out of the inbox are atomic renames.
func ValidateSameFilesystem(cfg DirConfig) error {
	a, err := deviceID(cfg.Inbox)
	if err != nil {
		return err
	}
	b, err := deviceID(cfg.State)
	if err != nil {
		return err
	}
	if a != b {
		return fmt.Errorf("inbox %s and state %s are on different filesystems", cfg.Inbox, cfg.State)
	}
	return nil
}

// moveFile moves src to dst using os.Rename. If rename fails with EXDEV
// (cross-device link), it falls back to copy + remove.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) || errno != syscall.EXDEV {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
