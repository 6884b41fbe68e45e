package utils

import "os"

// SafeEnv reads key from the environment, returning fallback when the
// variable is unset or empty. Empty counts as unset so that a blank line in
// a .env file does not silently override a default.
func SafeEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
