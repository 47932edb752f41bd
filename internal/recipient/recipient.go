package recipient

import (
	"fmt"

	"github.com/illarion/ofdcrypt/internal/crypto"
	"github.com/illarion/ofdcrypt/internal/fault"
)

// Recipient can wrap a session's FEK and IV so that only it can recover
// them later.
type Recipient interface {
	ID() string
	Wrap(fek, iv []byte) ([]byte, error)
}

// Unwrapper recovers FEK and IV from a wrapped key.
type Unwrapper interface {
	Unwrap(wrapped []byte) (fek, iv []byte, err error)
}

// Wrap is one recipient's wrapped copy of the session key.
type Wrap struct {
	RecipientID string `json:"recipient"`
	Wrapped     []byte `json:"wrapped"`
}

// WrapAll wraps km for every recipient, in order. Each wrap is
// independent: no recipient's output depends on another's.
func WrapAll(recipients []Recipient, km *crypto.KeyMaterial) ([]Wrap, error) {
	if len(recipients) == 0 {
		return nil, fault.Invalid("wrap", "at least one recipient is required")
	}
	if km == nil {
		return nil, fault.Invalid("wrap", "key material is nil")
	}

	wraps := make([]Wrap, 0, len(recipients))
	for _, r := range recipients {
		wrapped, err := r.Wrap(km.FEK, km.IV)
		if err != nil {
			return nil, fmt.Errorf("wrap for %s: %w", r.ID(), err)
		}
		wraps = append(wraps, Wrap{RecipientID: r.ID(), Wrapped: wrapped})
	}
	return wraps, nil
}

// Find returns the wrap addressed to id.
func Find(wraps []Wrap, id string) (Wrap, bool) {
	for _, w := range wraps {
		if w.RecipientID == id {
			return w, true
		}
	}
	return Wrap{}, false
}

// Func adapts a callback into a Recipient.
func Func(id string, fn func(fek, iv []byte) ([]byte, error)) Recipient {
	return funcRecipient{id: id, fn: fn}
}

type funcRecipient struct {
	id string
	fn func(fek, iv []byte) ([]byte, error)
}

func (f funcRecipient) ID() string { return f.id }

func (f funcRecipient) Wrap(fek, iv []byte) ([]byte, error) {
	return f.fn(fek, iv)
}

// UnwrapFunc adapts a callback into an Unwrapper.
type UnwrapFunc func(wrapped []byte) (fek, iv []byte, err error)

func (f UnwrapFunc) Unwrap(wrapped []byte) ([]byte, []byte, error) {
	return f(wrapped)
}

// joinKey and splitKey define the secret carried inside every wrap:
// FEK followed by IV, both one block long.
func joinKey(fek, iv []byte) ([]byte, error) {
	if len(fek) == 0 || len(fek) != len(iv) {
		return nil, fault.Invalid("wrap", "fek and iv must be the same non-zero length, got %d and %d", len(fek), len(iv))
	}
	secret := make([]byte, 0, len(fek)+len(iv))
	secret = append(secret, fek...)
	return append(secret, iv...), nil
}

func splitKey(secret []byte) ([]byte, []byte, error) {
	if len(secret) == 0 || len(secret)%2 != 0 {
		return nil, nil, fault.New(fault.ErrCipherFailure, "unwrap", "",
			fmt.Errorf("unwrapped key has invalid length %d", len(secret)))
	}
	half := len(secret) / 2
	fek := append([]byte(nil), secret[:half]...)
	iv := append([]byte(nil), secret[half:]...)
	crypto.ClearBytes(secret)
	return fek, iv, nil
}
