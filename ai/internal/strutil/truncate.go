// Package strutil provides rune-safe string helpers for the ai packages.
package strutil

// Prefix returns the first n runes of s. It never splits a multi-byte
// character and returns "" when n <= 0.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Truncate is Prefix with a trailing "..." when anything was cut.
func Truncate(s string, maxLen int) string {
	p := Prefix(s, maxLen)
	if len(p) < len(s) && p != "" {
		return p + "..."
	}
	return p
}
