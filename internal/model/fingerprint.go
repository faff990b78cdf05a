package model

import (
	"fmt"
	"hash/fnv"
)

// Fingerprint computes the stable dedup key for an alert: a hash over
// (level, source, category, title). Two inputs with identical fields always
// hash identically; any difference in any field changes the hash (§3, P6).
//
// hash/fnv is stdlib: no library in the retrieval pack offers a
// fingerprinting primitive, and FNV-1a is the idiomatic Go choice for a
// fast, non-cryptographic, stable string hash — introducing a third-party
// hashing dependency for this single call would not serve any other
// component.
func Fingerprint(level AlertLevel, source, category, title string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", level, source, category, title)
	return fmt.Sprintf("%016x", h.Sum64())
}
