// Package keyring stores recipient passphrases in the OS keyring so that
// encrypt and decrypt runs can unwrap keys without prompting.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/illarion/ofdcrypt/internal/fault"
)

const serviceName = "ofdcrypt"

// ErrNotFound is returned when no passphrase is stored for a user.
var ErrNotFound = fmt.Errorf("%w: no passphrase in keyring", fault.ErrInvalidArgument)

// SavePassword stores the passphrase for user.
func SavePassword(user string, password string) error {
	if user == "" {
		return fault.Invalid("keyring save", "user is empty")
	}
	if err := keyring.Set(serviceName, user, password); err != nil {
		return fault.IO("keyring save", user, err)
	}
	return nil
}

// GetPassword retrieves the passphrase stored for user.
func GetPassword(user string) (string, error) {
	password, err := keyring.Get(serviceName, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, user)
	}
	if err != nil {
		return "", fault.IO("keyring get", user, err)
	}
	return password, nil
}

// DeletePassword removes the passphrase for user. Deleting a missing
// entry is not an error.
func DeletePassword(user string) error {
	err := keyring.Delete(serviceName, user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fault.IO("keyring delete", user, err)
	}
	return nil
}

// HasPassword reports whether a passphrase is stored for user.
func HasPassword(user string) bool {
	_, err := keyring.Get(serviceName, user)
	return err == nil
}
