// Package convert normalizes loosely typed values at the system boundary.
package convert

import (
	"fmt"
	"strings"
)

// ParseBool accepts the spellings used by env vars, query strings and JSON
// produced by other services: 1/0, true/false, yes/no, on/off, y/n, t/f.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// Bool reports whether v is a truthy value. Numbers are true when non-zero,
// strings follow ParseBool, anything unrecognized is false.
func Bool(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case *bool:
		return b != nil && *b
	case int:
		return b != 0
	case int8:
		return b != 0
	case int16:
		return b != 0
	case int32:
		return b != 0
	case int64:
		return b != 0
	case uint:
		return b != 0
	case uint8:
		return b != 0
	case uint16:
		return b != 0
	case uint32:
		return b != 0
	case uint64:
		return b != 0
	case float32:
		return b != 0
	case float64:
		return b != 0
	case string:
		ok, _ := ParseBool(b)
		return ok
	case []byte:
		ok, _ := ParseBool(string(b))
		return ok
	case fmt.Stringer:
		ok, _ := ParseBool(b.String())
		return ok
	}
	return false
}
