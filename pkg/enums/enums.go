// Package enums holds the string enums persisted in Postgres enum columns
// and exchanged over the API.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

func oneOf[T ~string](value T, set []T) bool {
	return slices.Contains(set, value)
}

// parse accepts raw input case-insensitively and with surrounding spaces.
func parse[T ~string](kind, raw string, set []T) (T, error) {
	value := T(strings.ToLower(strings.TrimSpace(raw)))
	if oneOf(value, set) {
		return value, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
