package utils

import "strings"

// CleanText makes scraped text safe for every ledger store. Invalid UTF-8
// becomes U+FFFD, and control characters other than newline and tab become
// spaces, since spreadsheet XML cannot carry them.
func CleanText(s string) string {
	s = strings.ToValidUTF8(s, "�")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || (r >= 0x7f && r <= 0x9f) || r == 0xfffe || r == 0xffff:
			return ' '
		}
		return r
	}, s)
}
