// Package env reads process settings that are needed before config loads.
package env

import (
	"os"
	"strings"
)

// Get returns the value of the given environment variable or a fallback.
// Blank values count as unset.
func Get(key, fallback string) string {
	return Or(os.Getenv(key), fallback)
}

// Or returns value unless it is blank.
func Or(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
