//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// secrets is the on-disk layout of secrets.json: service -> account -> value.
type secrets map[string]map[string]string

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "problems-analyzer", "secrets.json")
}

// loadSecrets returns an empty set when the file does not exist yet.
func loadSecrets() (secrets, error) {
	raw, err := os.ReadFile(secretsFilePath())
	if errors.Is(err, fs.ErrNotExist) {
		return secrets{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	s := secrets{}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return s, nil
}

// updateSecrets applies fn to the stored set and writes it back with
// owner-only permissions.
func updateSecrets(fn func(secrets)) error {
	s, err := loadSecrets()
	if err != nil {
		return err
	}
	fn(s)

	p := secretsFilePath()
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, out, 0o600)
}

func keychainGet(service, account string) ([]byte, error) {
	s, err := loadSecrets()
	if err != nil {
		return nil, err
	}
	val, ok := s[service][account]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", service, account, ErrSecretNotFound)
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	return updateSecrets(func(s secrets) {
		if s[service] == nil {
			s[service] = map[string]string{}
		}
		s[service][account] = value
	})
}

func keychainDelete(service, account string) error {
	s, err := loadSecrets()
	if err != nil {
		return err
	}
	if _, ok := s[service][account]; !ok {
		return nil
	}
	return updateSecrets(func(s secrets) {
		delete(s[service], account)
		if len(s[service]) == 0 {
			delete(s, service)
		}
	})
}
