package background

import (
	"os"
	"path/filepath"
	"strings"
)

// lastUsedFileName is the single persisted slot holding the most recently
// resolved background reference, decoupled from the image cache so a prior
// choice can be reused without re-resolving the whole chain.
const lastUsedFileName = "last_used_image.txt"

// LastUsedPointer reads and writes the last-used-image file in baseDir.
type LastUsedPointer struct {
	path string
}

// NewLastUsedPointer creates a pointer over baseDir.
func NewLastUsedPointer(baseDir string) *LastUsedPointer {
	return &LastUsedPointer{path: filepath.Join(baseDir, lastUsedFileName)}
}

// Load returns the stored reference, or "" if the file does not exist.
func (p *LastUsedPointer) Load() (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save overwrites the pointer with ref. file:// URIs are stored as plain
// local paths; remote URLs are stored verbatim.
func (p *LastUsedPointer) Save(ref string) error {
	if strings.HasPrefix(ref, "file://") {
		ref = strings.TrimPrefix(ref, "file://")
	}
	return os.WriteFile(p.path, []byte(ref), 0600)
}

// Path returns the pointer file location, for tests.
func (p *LastUsedPointer) Path() string {
	return p.path
}
