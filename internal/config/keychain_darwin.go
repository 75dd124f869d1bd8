//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os/exec"
)

// errSecItemNotFound is the exit status security(1) uses for a missing item.
const errSecItemNotFound = 44

func security(args ...string) ([]byte, error) {
	out, err := exec.Command("security", args...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == errSecItemNotFound {
		return nil, ErrSecretNotFound
	}
	return out, err
}

func keychainGet(service, account string) ([]byte, error) {
	out, err := security("find-generic-password", "-s", service, "-a", account, "-w")
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", service, account, err)
	}
	return out, nil
}

func keychainSet(service, account, value string) error {
	_, err := security("add-generic-password", "-U", "-s", service, "-a", account, "-w", value)
	return err
}

func keychainDelete(service, account string) error {
	_, err := security("delete-generic-password", "-s", service, "-a", account)
	if errors.Is(err, ErrSecretNotFound) {
		return nil
	}
	return err
}
