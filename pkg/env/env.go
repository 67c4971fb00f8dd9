package env

import "os"

// Get returns the value of the environment variable or the fallback. Used
// during bootstrap before the envconfig-backed configuration is loaded.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
