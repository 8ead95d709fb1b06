package utils

import (
	"regexp"
	"strings"
)

var (
	slugUnsafe = regexp.MustCompile(`[^a-z0-9\s-]+`)
	slugSpace  = regexp.MustCompile(`[\s-]+`)
)

// Slugify lowercases s and joins words with hyphens.
//
//	"Netflix Premium 4K" -> "netflix-premium-4k"
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugUnsafe.ReplaceAllString(s, "")
	s = slugSpace.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
