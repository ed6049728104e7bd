package ingest

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// Fingerprint hashes the normalized question text plus subject. It is stored
// with the question row so duplicate submissions can be found after the fact;
// the importer itself enforces no uniqueness (re-running an import creates a
// second row). Promoting the fingerprint to a unique constraint is the
// documented extension point for at-most-once semantics.
func Fingerprint(text, subject string) string {
	normalized := normalizeText(text) + "\x00" + normalizeText(subject)
	sum := blake2b.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// normalizeText lowercases, NFC-normalizes and collapses whitespace so
// trivially reformatted copies of a question fingerprint identically.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}
