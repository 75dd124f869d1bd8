package config

import (
	"fmt"
	"slices"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns the effective value of every non-secret key.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}

// SetKey validates value against the key's type and persists it.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), key, value)
}

// UnsetKey removes a stored value so the default (or env var) applies again.
func UnsetKey(key string) error {
	return unsetKeyWith(newPlatformBackend(), key)
}

func writableSpec(key string) (keySpec, error) {
	s, ok := lookupSpec(key)
	if !ok {
		return keySpec{}, fmt.Errorf("unknown config key: %q (valid keys: %v)", key, ValidKeys())
	}
	if s.secret {
		return keySpec{}, fmt.Errorf("cannot set secret %q via config; use environment variable %s%s", key, s.env, apiKeyHint())
	}
	return s, nil
}

func setKeyWith(b Backend, key, value string) error {
	s, err := writableSpec(key)
	if err != nil {
		return err
	}
	v, err := coerce(key, s.typ, value)
	if err != nil {
		return err
	}
	return b.Store(key, v)
}

func unsetKeyWith(b Backend, key string) error {
	if _, err := writableSpec(key); err != nil {
		return err
	}
	return b.Remove(key)
}

// ValidKeys returns the sorted non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	slices.Sort(keys)
	return keys
}
