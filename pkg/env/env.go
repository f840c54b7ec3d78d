package env

import "os"

// Get reads an environment variable, falling back when it is unset or empty.
// It covers the few knobs read before config parsing exists, like the logger
// output format.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
