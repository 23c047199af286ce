package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
)

// SumText hashes raw document text.
func SumText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "sha256:" + hex.EncodeToString(sum[:])
}
