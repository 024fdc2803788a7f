package desensitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	assert.Equal(t, "a***@example.com", Email("ada.lovelace@example.com"))
	assert.Equal(t, "b***@x.io", Email("b@x.io"))
	assert.Equal(t, "n****l", Email("nomail"))
	assert.Equal(t, "", Email(""))
}

func TestIP(t *testing.T) {
	assert.Equal(t, "203.0.113.*", IP("203.0.113.42"))
	assert.Equal(t, "2001:db8:*", IP("2001:db8::1"))
	assert.Equal(t, "**", IP("ab"))
}

func TestCustom(t *testing.T) {
	assert.Equal(t, "se****et", Custom("secretet", 2))
	assert.Equal(t, "***", Custom("abc", 2))
}
