// Package desensitize masks personal data before it reaches logs or
// outbound audit messages.
package desensitize

import "strings"

// Email keeps the first character of the local part and the domain:
// ada.lovelace@example.com -> a***@example.com
func Email(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return Custom(email, 1)
	}
	return email[:1] + "***" + email[at:]
}

// IP keeps the network part of an address: 203.0.113.42 -> 203.0.113.*
// and 2001:db8::1 -> 2001:db8:*
func IP(addr string) string {
	if i := strings.LastIndexByte(addr, '.'); i > 0 && !strings.Contains(addr, ":") {
		return addr[:i] + ".*"
	}
	parts := strings.Split(addr, ":")
	if len(parts) > 2 {
		return strings.Join(parts[:2], ":") + ":*"
	}
	return Custom(addr, 2)
}

// Custom keeps keep bytes at both ends and masks the rest.
func Custom(s string, keep int) string {
	if len(s) <= keep*2 {
		return strings.Repeat("*", len(s))
	}
	return s[:keep] + strings.Repeat("*", len(s)-keep*2) + s[len(s)-keep:]
}
