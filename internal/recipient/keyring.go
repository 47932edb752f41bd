package recipient

import (
	"io"

	"github.com/illarion/ofdcrypt/internal/keyring"
)

// Keyring is a passphrase recipient whose passphrase lives in the OS
// keyring under the given user. The passphrase is fetched on every Wrap
// and Unwrap call.
type Keyring struct {
	User       string
	Iterations int
	Random     io.Reader
}

// NewKeyring creates a keyring recipient for user.
func NewKeyring(user string) *Keyring {
	return &Keyring{User: user}
}

// ID is "keyring:" followed by the user.
func (k *Keyring) ID() string {
	return "keyring:" + k.User
}

func (k *Keyring) Wrap(fek, iv []byte) ([]byte, error) {
	p, err := k.password()
	if err != nil {
		return nil, err
	}
	defer p.Destroy()
	return p.Wrap(fek, iv)
}

func (k *Keyring) Unwrap(wrapped []byte) ([]byte, []byte, error) {
	p, err := k.password()
	if err != nil {
		return nil, nil, err
	}
	defer p.Destroy()
	return p.Unwrap(wrapped)
}

func (k *Keyring) password() (*Password, error) {
	secret, err := keyring.GetPassword(k.User)
	if err != nil {
		return nil, err
	}
	p := NewPassword(k.ID(), []byte(secret))
	p.Iterations = k.Iterations
	p.Random = k.Random
	return p, nil
}

// SaveKeyringPassword stores the passphrase used by NewKeyring(user).
func SaveKeyringPassword(user, password string) error {
	return keyring.SavePassword(user, password)
}
