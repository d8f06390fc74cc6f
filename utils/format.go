package utils

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/uniseg"
)

// ExcerptLength is the number of grapheme clusters kept from a message in notices
const ExcerptLength = 100

// TruncateGraphemes keeps at most limit user-perceived characters of s,
// so emoji sequences and combining marks are never split.
func TruncateGraphemes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	rest := s
	state := -1
	for n := 0; n < limit && len(rest) > 0; n++ {
		_, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
	}
	return s[:len(s)-len(rest)]
}

// FormatSince renders the time elapsed from then to now, e.g. "3 hours".
// A then after now (clock skew between Discord and us) renders as "now".
func FormatSince(then, now time.Time) string {
	if then.After(now) {
		then = now
	}
	return strings.TrimSpace(humanize.RelTime(then, now, "", ""))
}
