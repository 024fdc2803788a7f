// Package id generates and checks identifiers that cross the process
// boundary.
package id

import (
	"github.com/google/uuid"
)

// maxLen bounds correlation ids taken from clients.
const maxLen = 128

// New returns a random UUID in its canonical form.
func New() string {
	return uuid.NewString()
}

// Printable reports whether s may be echoed into logs and headers: non
// empty, at most 128 bytes of letters, digits, dot, underscore or dash.
func Printable(s string) bool {
	if s == "" || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// OrNew returns s when it is printable and a fresh id otherwise.
func OrNew(s string) string {
	if Printable(s) {
		return s
	}
	return New()
}
