package util

import (
	"regexp"
	"strings"
)

var nonDial = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone tries to normalize user input into E.164 format, assuming
// North American numbering when no country code is given. It returns "" when
// the input cannot be a dialable number.
func NormalizePhone(raw string) string {
	s := nonDial.ReplaceAllString(strings.TrimSpace(raw), "")

	switch {
	case strings.HasPrefix(s, "+"):
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case len(s) == 10:
		s = "+1" + s
	case len(s) == 11 && strings.HasPrefix(s, "1"):
		s = "+" + s
	default:
		return ""
	}

	// E.164 allows at most 15 digits after the plus
	if n := len(s) - 1; n < 8 || n > 15 || strings.Contains(s[1:], "+") {
		return ""
	}
	return s
}
