package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKeychainService is the keychain service name entries are filed under.
const DefaultKeychainService = "sitebuilder-datasources"

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool.
type KeychainStore struct {
	service string
	command string
}

// NewKeychainStore creates a KeychainStore filing entries under service.
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{service: service, command: "security"}
}

// Available reports whether the security tool can be found.
func (k *KeychainStore) Available() bool {
	_, err := exec.LookPath(k.command)
	return err == nil
}

func (k *KeychainStore) run(args ...string) ([]byte, error) {
	return exec.Command(k.command, args...).Output()
}

// Set stores a secret, replacing an existing entry.
func (k *KeychainStore) Set(key string, value []byte) error {
	_ = k.Delete(key)

	cmd := exec.Command(k.command, "add-generic-password",
		"-a", key,
		"-s", k.service,
		"-w", string(value),
		"-U",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("keychain set: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get retrieves a secret. A missing item yields nil, nil.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.run("find-generic-password", "-a", key, "-s", k.service, "-w")
	if err != nil {
		var exitErr *exec.ExitError
		// security exits 44 when the item does not exist
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 44 {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get: %w", err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes a secret. Deleting a missing item is not an error.
func (k *KeychainStore) Delete(key string) error {
	_, _ = k.run("delete-generic-password", "-a", key, "-s", k.service)
	return nil
}
