//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.problems-analyzer.app"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "problems-analyzer")
	}
	return "problems-analyzer-data"
}

func apiKeyHint() string {
	return " or macOS Keychain (service: problems-analyzer, account: service_api_key)"
}

// defaultsBackend keeps settings in the user defaults domain so they can
// also be inspected with `defaults read com.problems-analyzer.app`.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() Backend {
	return &defaultsBackend{domain: defaultsDomain}
}

func (b *defaultsBackend) run(args ...string) (string, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Lookup reads key as text. defaults prints bools as 1/0, which coerce
// accepts through strconv.ParseBool.
func (b *defaultsBackend) Lookup(key string, typ keyType) (any, bool, error) {
	s, err := b.run("read", b.domain, key)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading default %q: %w, output: %s", key, err, s)
	}
	v, err := coerce(key, typ, s)
	return v, true, err
}

func (b *defaultsBackend) Store(key string, val any) error {
	var typed []string
	switch v := val.(type) {
	case string:
		typed = []string{"-string", v}
	case int:
		typed = []string{"-int", strconv.Itoa(v)}
	case bool:
		typed = []string{"-bool", strconv.FormatBool(v)}
	default:
		return fmt.Errorf("cannot store %T for %s", val, key)
	}
	if out, err := b.run(append([]string{"write", b.domain, key}, typed...)...); err != nil {
		return fmt.Errorf("writing default %q: %w, output: %s", key, err, out)
	}
	return nil
}

func (b *defaultsBackend) Remove(key string) error {
	if _, ok, err := b.Lookup(key, kString); err != nil || !ok {
		return err
	}
	if out, err := b.run("delete", b.domain, key); err != nil {
		return fmt.Errorf("deleting default %q: %w, output: %s", key, err, out)
	}
	return nil
}
