package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the number of hex characters kept from the digest.
// 64 bits is plenty for a partition key over restaurant URLs.
const fingerprintLen = 16

// Fingerprint derives a short, stable identifier from a URL. The same URL
// always yields the same fingerprint; it is used as the dedup key for
// cached deal rows.
func Fingerprint(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
