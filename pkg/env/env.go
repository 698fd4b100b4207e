// Package env reads the few settings that must be known before config.Load
// runs, such as the log format.
package env

import (
	"os"
	"strings"
)

// Get returns the first non-empty value among keys, or fallback.
func Get(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}

// Bool reports whether the first set key holds a truthy value.
func Bool(keys ...string) bool {
	switch strings.ToLower(Get("", keys...)) {
	case "1", "t", "true", "yes", "on":
		return true
	}
	return false
}
