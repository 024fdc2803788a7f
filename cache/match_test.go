package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPattern(t *testing.T) {
	assert.Equal(t, "posts:*", Pattern("posts:"))
	assert.Equal(t, "posts:*:labels", Pattern("posts:*:labels"))
	assert.Equal(t, `a\:b`, Pattern(`a\:b`))
	assert.Equal(t, "*", Pattern(""))
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, key string
		want         bool
	}{
		{"posts:*", "posts:1", true},
		{"posts:*", "posts:1:comments", true},
		{"posts:*", "posts/1", false},
		{"*", "", true},
		{"user:*:profile", "user:42:profile", true},
		{"user:*:profile", "user:42:settings", false},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxbyy", false},
		{"h?llo", "hello", true},
		{"h?llo", "hllo", false},
		{"h[ae]llo", "hallo", true},
		{"h[ae]llo", "hillo", false},
		{"h[^e]llo", "hallo", true},
		{"h[^e]llo", "hello", false},
		{"h[a-c]llo", "hbllo", true},
		{"h[c-a]llo", "hbllo", true},
		{`h\*llo`, "h*llo", true},
		{`h\*llo`, "hello", false},
		{"api/*", "api/v1/posts", true},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.pattern, tt.key), "%q ~ %q", tt.pattern, tt.key)
	}
}
