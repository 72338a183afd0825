package config

import (
	"os"
)

// EnvironmentExpander expands ${VAR} placeholders in the raw configuration document.
type EnvironmentExpander interface {
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander expands placeholders from the process environment.
// "${VAR:-default}" falls back to default when VAR is unset or empty; an unset
// variable without a default expands to the empty string.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates an OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand implements EnvironmentExpander.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.Expand(string(input), lookupWithDefault)), nil
}

func lookupWithDefault(key string) string {
	name, def, hasDefault := cutDefault(key)
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	if hasDefault {
		return def
	}
	return ""
}

func cutDefault(key string) (string, string, bool) {
	for i := 0; i+1 < len(key); i++ {
		if key[i] == ':' && key[i+1] == '-' {
			return key[:i], key[i+2:], true
		}
	}
	return key, "", false
}
