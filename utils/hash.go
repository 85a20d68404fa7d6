package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeQuestion lowercases q and collapses runs of whitespace so trivially
// different phrasings share a cache entry.
func NormalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// HashKey is the hex sha256 of parts joined by NUL.
func HashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
