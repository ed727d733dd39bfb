package helpers

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 returns the hex digest of input.
func SHA256(input string) string {
	return SHA256Bytes([]byte(input))
}

// SHA256Bytes returns the hex digest of input.
func SHA256Bytes(input []byte) string {
	hash := sha256.Sum256(input)
	return hex.EncodeToString(hash[:])
}

// Digest12 returns the first twelve hex digits of the digest of input, used to tag
// compiled units in logs.
func Digest12(input []byte) string {
	return SHA256Bytes(input)[:12]
}
