package prompts

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText returns a SHA256 hash of the text for change detection.
// Runs log the hash so results can be tied to the exact instruction used.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ShortHash returns the first 12 hex characters of HashText.
func ShortHash(text string) string {
	return HashText(text)[:12]
}
