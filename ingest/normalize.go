package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize canonicalizes content for hashing: lower-cased, with runs
// of whitespace collapsed to single spaces. "The sky is blue" and
// " the  sky is BLUE " hash identically.
func Normalize(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}

// Hash computes the canonical content digest over normalized content.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
