package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum returns the hex encoded SHA-256 of the concatenated parts.
// Snapshot versions use it to detect saves that change nothing.
func Checksum(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
