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

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "problems-analyzer-data"
		}
	}
	return filepath.Join(dir, "problems-analyzer")
}

func apiKeyHint() string {
	return " or " + secretsFilePath() + " (service: problems-analyzer, account: service_api_key)"
}

// fileBackend keeps settings in $XDG_CONFIG_HOME/problems-analyzer/config.json.
// Values are written with their native JSON types, so history.enabled is
// stored as true/false rather than a quoted string.
type fileBackend struct {
	path string
	data map[string]any
}

func newPlatformBackend() Backend {
	b := &fileBackend{path: configFilePath(), data: make(map[string]any)}
	b.load()
	return b
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "problems-analyzer", "config.json")
}

// load tolerates a missing or corrupt file; the CLI then runs on defaults
// and the next Store rewrites it.
func (b *fileBackend) load() {
	raw, err := os.ReadFile(b.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", b.path, err)
		return
	}
	if err := json.Unmarshal(raw, &b.data); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", b.path, err)
		b.data = make(map[string]any)
	}
}

func (b *fileBackend) flush() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	raw, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", b.path, err)
	}
	return os.WriteFile(b.path, append(raw, '\n'), 0o600)
}

func (b *fileBackend) Lookup(key string, typ keyType) (any, bool, error) {
	raw, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	v, err := coerce(key, typ, raw)
	return v, true, err
}

func (b *fileBackend) Store(key string, val any) error {
	b.data[key] = val
	return b.flush()
}

func (b *fileBackend) Remove(key string) error {
	if _, ok := b.data[key]; !ok {
		return nil
	}
	delete(b.data, key)
	return b.flush()
}
