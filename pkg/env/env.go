// Package env reads the few process settings needed before config.Load runs,
// such as the log format of the bootstrap logger.
package env

import (
	"os"
	"strconv"
	"strings"
)

// String returns the trimmed value of key, or fallback when it is unset or blank.
func String(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Bool parses key with strconv.ParseBool. Unset or unparsable values yield fallback.
func Bool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
