package env

import "os"

// Source abstracts the process environment so detection and validation can be
// run against fabricated environments in tests.
type Source interface {
	// Lookup reports the raw value and whether the variable is set at all,
	// mirroring os.LookupEnv. A variable set to the empty string is "set".
	Lookup(key string) (string, bool)
}

// OS reads from the real process environment.
type OS struct{}

func (OS) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Map is a fixed in-memory environment for tests.
type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Get retrieves a non-empty environment variable from src.
func Get(src Source, key string) (string, bool) {
	value, _ := src.Lookup(key)
	if value == "" {
		return "", false
	}
	return value, true
}

// GetOrDefault retrieves a non-empty environment variable with a default value.
func GetOrDefault(src Source, key, defaultValue string) string {
	if value, ok := Get(src, key); ok {
		return value
	}
	return defaultValue
}
