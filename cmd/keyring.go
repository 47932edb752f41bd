package cmd

import (
	"errors"
	"fmt"

	"github.com/illarion/ofdcrypt/internal/crypto"
	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/keyring"
	"github.com/illarion/ofdcrypt/internal/recipient"
)

// KeyringSave saves the passphrase for a keyring recipient
func KeyringSave(user string) error {
	if user == "" {
		return fault.Invalid("keyring", "-user is required")
	}

	password, err := GetPassword(true)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(password)

	if err := recipient.SaveKeyringPassword(user, string(password)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}

	fmt.Printf("Passphrase for %s saved to keyring\n", recipient.NewKeyring(user).ID())
	return nil
}

// KeyringDelete removes the passphrase from the OS keyring
func KeyringDelete(user string) error {
	if user == "" {
		return fault.Invalid("keyring", "-user is required")
	}
	if !keyring.HasPassword(user) {
		fmt.Println("No passphrase stored in keyring")
		return nil
	}

	if err := keyring.DeletePassword(user); err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	fmt.Println("Passphrase removed from keyring")
	return nil
}

// KeyringStatus checks if a passphrase is stored in the keyring
func KeyringStatus(user string) error {
	if user == "" {
		return fault.Invalid("keyring", "-user is required")
	}

	_, err := keyring.GetPassword(user)
	switch {
	case err == nil:
		fmt.Printf("%s: stored in keyring\n", recipient.NewKeyring(user).ID())
	case errors.Is(err, keyring.ErrNotFound):
		fmt.Printf("%s: not stored\n", recipient.NewKeyring(user).ID())
	default:
		return err
	}
	return nil
}
