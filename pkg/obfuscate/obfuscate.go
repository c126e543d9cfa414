// Package obfuscate masks sensitive values (tokens, emails) before they reach
// logs.
package obfuscate

import "strings"

// End keeps at most the first n characters of s, capped at half its length,
// and masks the rest.
func End(s string, n int) string {
	if s == "" {
		return s
	}
	keep := n
	if half := len(s) / 2; keep > half {
		keep = half
	}
	return s[:keep] + strings.Repeat("*", len(s)-keep)
}

// Begin keeps at most the last n characters of s, capped at half its length,
// and masks the rest.
func Begin(s string, n int) string {
	if s == "" {
		return s
	}
	keep := n
	if half := len(s) / 2; keep > half {
		keep = half
	}
	return strings.Repeat("*", len(s)-keep) + s[len(s)-keep:]
}

// Email masks the local part of an email address, keeping its first two
// characters and the full domain.
func Email(s string) string {
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		return End(s, 2)
	}
	local := s[:at]
	keep := 2
	if keep > len(local) {
		keep = len(local)
	}
	return local[:keep] + strings.Repeat("*", len(local)-keep) + s[at:]
}
