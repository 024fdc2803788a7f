package rate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	DeviceHeader = "X-Device-Id"
	maxDeviceLen = 128
)

// Identity is who consumes a budget: the client address, optionally narrowed
// by the device id the client sends.
type Identity struct {
	IP       string
	DeviceID string
}

// Key is the cache key fragment of the identity. Device ids are hashed so
// arbitrary header content never ends up in a key.
func (i Identity) Key() string {
	ip := i.IP
	if ip == "" {
		ip = "unknown"
	}
	device := strings.TrimSpace(i.DeviceID)
	if device == "" {
		return ip
	}
	if len(device) > maxDeviceLen {
		device = device[:maxDeviceLen]
	}
	sum := sha256.Sum256([]byte(device))
	return ip + ":" + hex.EncodeToString(sum[:8])
}
