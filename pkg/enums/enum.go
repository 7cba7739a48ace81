// Package enums holds the string enums persisted in the database and
// accepted over the API. Every enum exposes IsValid and a Parse function.
package enums

import (
	"fmt"
	"slices"
)

func isOneOf[T ~string](v T, allowed []T) bool {
	return slices.Contains(allowed, v)
}

func parseOneOf[T ~string](kind, raw string, allowed []T) (T, error) {
	v := T(raw)
	if !isOneOf(v, allowed) {
		return "", fmt.Errorf("invalid %s %q", kind, raw)
	}
	return v, nil
}
