package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// HashRef creates a SHA256 hash of a source reference.
// Redis keys built from it stay short whatever the URL length.
func HashRef(ref string) string {
	h := sha256.New()
	h.Write([]byte(ref))
	return hex.EncodeToString(h.Sum(nil))
}

// IsWebURL reports whether raw is an absolute http(s) URL.
func IsWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// MatchesAny reports whether ref contains any of the non-empty patterns.
func MatchesAny(ref string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(ref, p) {
			return true
		}
	}
	return false
}
