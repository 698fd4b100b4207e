// Package metrics holds the Prometheus collectors shared by the binaries.
// Every collector is nil-safe so tests and tools can skip registration.
package metrics

const namespace = "porter"

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
