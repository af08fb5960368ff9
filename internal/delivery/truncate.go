package delivery

import "unicode/utf16"

// Marker is appended to text cut by Truncate.
const Marker = "…"

// Truncate fits text into limit UTF-16 code units, the unit messaging
// platforms count message length in. Cut text ends with Marker and is exactly
// limit units long, or one unit shorter when the cut would split a surrogate pair.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf16Len(text) <= limit {
		return text
	}

	budget := limit - utf16Len(Marker)
	used := 0
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1 // invalid UTF-8 decodes to U+FFFD
		}
		if used+n > budget {
			return text[:i] + Marker
		}
		used += n
	}
	return text
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
