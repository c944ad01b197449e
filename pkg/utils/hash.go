package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashString returns a stable 32-character hex digest of input, used for
// cache keys and filing identifiers. Truncated so derived IDs with
// suffixes still fit fixed-width key columns.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
