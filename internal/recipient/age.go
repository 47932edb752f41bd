package recipient

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"github.com/illarion/ofdcrypt/internal/crypto"
	"github.com/illarion/ofdcrypt/internal/fault"
)

// Age wraps keys to an age X25519 public key (age1...).
type Age struct {
	recipient *age.X25519Recipient
}

// ParseAge parses an age public key.
func ParseAge(publicKey string) (*Age, error) {
	r, err := age.ParseX25519Recipient(strings.TrimSpace(publicKey))
	if err != nil {
		return nil, fault.Invalid("parse age recipient", "%v", err)
	}
	return &Age{recipient: r}, nil
}

// ID is "age:" followed by the public key.
func (a *Age) ID() string {
	return "age:" + a.recipient.String()
}

func (a *Age) Wrap(fek, iv []byte) ([]byte, error) {
	secret, err := joinKey(fek, iv)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(secret)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, a.recipient)
	if err != nil {
		return nil, fault.New(fault.ErrCipherFailure, "wrap", a.ID(), err)
	}
	if _, err := w.Write(secret); err != nil {
		return nil, fault.New(fault.ErrCipherFailure, "wrap", a.ID(), err)
	}
	if err := w.Close(); err != nil {
		return nil, fault.New(fault.ErrCipherFailure, "wrap", a.ID(), err)
	}
	return buf.Bytes(), nil
}

// AgeIdentity is the private half of an Age recipient.
type AgeIdentity struct {
	identity *age.X25519Identity
}

// GenerateAgeIdentity creates a fresh X25519 identity.
func GenerateAgeIdentity() (*AgeIdentity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fault.New(fault.ErrCipherFailure, "generate age identity", "", err)
	}
	return &AgeIdentity{identity: identity}, nil
}

// ParseAgeIdentity parses an AGE-SECRET-KEY-1... string. Blank lines and
// "#" comments are skipped so age key files can be passed verbatim.
func ParseAgeIdentity(s string) (*AgeIdentity, error) {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fault.Invalid("parse age identity", "%v", err)
		}
		return &AgeIdentity{identity: identity}, nil
	}
	return nil, fault.Invalid("parse age identity", "no identity found")
}

// Recipient returns the public recipient for this identity.
func (i *AgeIdentity) Recipient() *Age {
	return &Age{recipient: i.identity.Recipient()}
}

// String returns the secret key encoding. Never log it.
func (i *AgeIdentity) String() string {
	return i.identity.String()
}

func (i *AgeIdentity) Unwrap(wrapped []byte) ([]byte, []byte, error) {
	r, err := age.Decrypt(bytes.NewReader(wrapped), i.identity)
	if err != nil {
		return nil, nil, fault.New(fault.ErrCipherFailure, "unwrap", i.Recipient().ID(), err)
	}
	secret, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fault.New(fault.ErrCipherFailure, "unwrap", i.Recipient().ID(),
			fmt.Errorf("reading wrapped key: %w", err))
	}
	return splitKey(secret)
}
