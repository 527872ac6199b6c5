// Package instance names the running process for logs and lock ownership.
package instance

import "os"

// ID prefers WORKER_ID, then the hostname, then "<kind>-0".
func ID(kind string) string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return kind + "-0"
}
