// Package instance names the running replica for logs and consumer metrics.
package instance

import (
	"os"
	"strings"
)

// GetID returns PORTER_INSTANCE_ID, falling back to the hostname and then a
// fixed default.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("PORTER_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "porter-0"
}
