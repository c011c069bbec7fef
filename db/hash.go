package db

import (
	"crypto/sha256"
	"encoding/hex"
)

// contentHash returns the hex sha256 of data, the dedup key for system
// prompts and attachment payloads
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
