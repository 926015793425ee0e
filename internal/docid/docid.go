// Package docid provides deterministic document IDs for files picked up from
// watched intake directories.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file:"

// FromPath returns a stable document ID for the given absolute path. The same
// path always yields the same ID, so re-scans update the existing document
// instead of creating a duplicate.
func FromPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}
