// Package daemon watches the artifact inbox and ingests files dropped at
// <inbox>/<case_id>/<type>/<file>.
package daemon

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ppiankov/maat/internal/store"
)

// validID matches alphanumeric characters, dashes, and underscores only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// dropDepth is the number of path components below the inbox.
const dropDepth = 3

// Drop is one file placed in the inbox.
type Drop struct {
	CaseID string
	Type   string
	Name   string
	Path   string
}

// ParseDrop validates the location of path inside inbox.
func ParseDrop(inbox, path string) (Drop, error) {
	rel, err := filepath.Rel(inbox, path)
	if err != nil {
		return Drop{}, fmt.Errorf("drop outside inbox: %w", err)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != dropDepth || parts[0] == ".." {
		return Drop{}, fmt.Errorf("drop %s: expected <case_id>/<type>/<file>", rel)
	}
	d := Drop{CaseID: parts[0], Type: parts[1], Name: parts[2], Path: path}
	if !validID.MatchString(d.CaseID) {
		return Drop{}, fmt.Errorf("drop %s: invalid case id %q", rel, d.CaseID)
	}
	if !store.ValidArtifactType(d.Type) {
		return Drop{}, fmt.Errorf("drop %s: unknown artifact type %q", rel, d.Type)
	}
	if !isArtifactFile(d.Name) {
		return Drop{}, fmt.Errorf("drop %s: not an artifact file", rel)
	}
	return d, nil
}

// isArtifactFile rejects hidden files and partial writes.
func isArtifactFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.HasSuffix(name, ".tmp") && !strings.HasSuffix(name, ".part")
}

// depth returns how many components path lies below inbox, or -1.
func depth(inbox, path string) int {
	rel, err := filepath.Rel(inbox, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return -1
	}
	if rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}
