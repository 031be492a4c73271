// Package fileid derives stable identifiers for library file contents.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
)

const contentPrefix = "sha256:"

// ContentID returns the id of a file's bytes. Renamed or copied files keep
// their id; any edit changes it.
func ContentID(content []byte) string {
	hash := sha256.Sum256(content)
	return contentPrefix + hex.EncodeToString(hash[:])
}
