package network

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostname(t *testing.T) {
	assert.NotEmpty(t, Hostname())
}

func TestLocalIP(t *testing.T) {
	ip := LocalIP()
	if ip == "" {
		t.Skip("no non-loopback interface")
	}
	parsed := net.ParseIP(ip)
	if assert.NotNil(t, parsed) {
		assert.False(t, parsed.IsLoopback())
		assert.NotNil(t, parsed.To4())
	}
}
