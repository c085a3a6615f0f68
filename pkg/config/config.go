// Package config reads service configuration from the environment. Both the
// api and runner binaries are configured this way; the compose file sets the
// variables and every fallback matches local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// GetString returns the variable's value, or fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt parses the variable as a base-10 integer. A set-but-unparsable
// value falls back and is logged, so a typoed compose entry is visible
// instead of silently ignored.
func GetInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", key, value, fallback)
		return fallback
	}
	return parsed
}

// GetBool parses the variable with strconv.ParseBool semantics.
func GetBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("config: %s=%q is not a boolean, using %t", key, value, fallback)
		return fallback
	}
	return parsed
}

// GetSeconds reads an integer second count as a duration. Timeouts in the
// environment are plain second counts, not Go duration strings.
func GetSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(GetInt(key, fallbackSeconds)) * time.Second
}
