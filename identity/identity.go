package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	// Keep letters of any script (listing addresses are mostly Hebrew) and
	// digits; everything else becomes a space.
	nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// Derive returns the stable identity for a listing. The site-provided token
// wins; without one, a composite hash of title, address and room count keeps
// the identity stable across fetches even when the price changes.
func Derive(token, title, address string, rooms float64) string {
	if t := strings.TrimSpace(token); t != "" {
		return t
	}
	normTitle := Normalize(title)
	normAddr := Normalize(address)
	if normTitle == "" && normAddr == "" {
		return ""
	}
	input := fmt.Sprintf("%s|%s|%.1f", normTitle, normAddr, rooms)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// Normalize lowercases, strips punctuation and collapses whitespace so
// cosmetic differences in upstream text do not split identities.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordRegex.ReplaceAllString(s, " ")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
