package chat

import "unicode/utf8"

// splitContent slices s into pieces of at most max bytes without ever
// splitting a UTF-8 code point. A rune wider than max still produces a
// whole-rune piece; receivers concatenate byte-identically either way.
func splitContent(s string, max int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var out []string
	for len(s) > 0 {
		if len(s) <= max {
			out = append(out, s)
			break
		}
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(s)
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return out
}
