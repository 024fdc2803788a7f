package transport

import (
	"context"
	"net"
	"strconv"
)

// Server is anything the application runs and shuts down.
type Server interface {
	// Run blocks until the server stops. A graceful shutdown is not an error.
	Run() error
	Shutdown(context.Context) error
}

// ValidateAddress reports whether addr is a usable "host:port" listen address.
func ValidateAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if host != "" && !validHost(host) {
		return false
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return p >= 1 && p <= 65535
}

func validHost(host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}
	if len(host) > 253 {
		return false
	}
	for i, r := range host {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-'
		if !ok {
			return false
		}
		if r == '-' && (i == 0 || i == len(host)-1) {
			return false
		}
	}
	return true
}
