package cache

import "strings"

// Pattern normalizes a DeleteByPrefix argument. Patterns use Redis glob
// syntax (* ? [abc] [^a] [a-z] and \ escapes); '*' matches any run of
// characters including ':' and '/'. A pattern without any of these
// metacharacters is a plain prefix, so "posts:" means "posts:*".
func Pattern(p string) string {
	if strings.ContainsAny(p, `*?[\`) {
		return p
	}
	return p + "*"
}

// Match reports whether key matches the glob pattern with the same
// semantics as the Redis KEYS and SCAN MATCH commands.
func Match(pattern, key string) bool {
	return match(pattern, key)
}

func match(p, s string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for len(p) > 1 && p[1] == '*' {
				p = p[1:]
			}
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if match(p[1:], s[i:]) {
					return true
				}
			}
			return false

		case '?':
			if len(s) == 0 {
				return false
			}
			s = s[1:]
			p = p[1:]

		case '[':
			if len(s) == 0 {
				return false
			}
			matched, rest := matchClass(p[1:], s[0])
			if !matched {
				return false
			}
			s = s[1:]
			p = rest

		case '\\':
			if len(p) >= 2 {
				p = p[1:]
			}
			fallthrough

		default:
			if len(s) == 0 || p[0] != s[0] {
				return false
			}
			s = s[1:]
			p = p[1:]
		}
	}
	return len(s) == 0
}

// matchClass matches c against the class body p (after '[') and returns the
// pattern remaining after the closing ']'. An unterminated class runs to the
// end of the pattern, as in Redis.
func matchClass(p string, c byte) (bool, string) {
	negate := false
	if len(p) > 0 && p[0] == '^' {
		negate = true
		p = p[1:]
	}

	matched := false
	for len(p) > 0 && p[0] != ']' {
		switch {
		case p[0] == '\\' && len(p) >= 2:
			if p[1] == c {
				matched = true
			}
			p = p[2:]
		case len(p) >= 3 && p[1] == '-':
			lo, hi := p[0], p[2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			p = p[3:]
		default:
			if p[0] == c {
				matched = true
			}
			p = p[1:]
		}
	}
	if len(p) > 0 {
		p = p[1:]
	}
	return matched != negate, p
}
