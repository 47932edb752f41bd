package recipient

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/illarion/ofdcrypt/internal/crypto"
	"github.com/illarion/ofdcrypt/internal/fault"
)

// MaxIterations bounds the PBKDF2 cost accepted from a wrapped key.
const MaxIterations = 10_000_000

const passwordHeader = crypto.SaltSize + 4

// Password wraps keys under a passphrase. The wire form is
// salt(32) | iterations(4, big endian) | AES-256-GCM sealed FEK||IV,
// with the recipient ID bound as additional data.
type Password struct {
	id         string
	password   []byte
	Iterations int       // PBKDF2 iterations for new wraps; 0 means crypto.DefaultIters
	Random     io.Reader // Salt and nonce source; nil means crypto/rand
}

// NewPassword creates a passphrase recipient identified by id. It is
// also the Unwrapper for its own wraps.
func NewPassword(id string, password []byte) *Password {
	return &Password{
		id:       id,
		password: append([]byte(nil), password...),
	}
}

func (p *Password) ID() string {
	return p.id
}

func (p *Password) Wrap(fek, iv []byte) ([]byte, error) {
	secret, err := joinKey(fek, iv)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(secret)

	kdf, err := crypto.NewKDF(p.Random)
	if err != nil {
		return nil, fault.New(fault.ErrCipherFailure, "wrap", p.id, err)
	}
	if p.Iterations > 0 {
		kdf.Iterations = p.Iterations
	}

	key := kdf.DeriveKey(p.password)
	sealer := crypto.NewSealer(key, p.Random)
	defer sealer.Destroy()

	sealed, err := sealer.Seal(secret, []byte(p.id))
	if err != nil {
		return nil, fault.New(fault.ErrCipherFailure, "wrap", p.id, err)
	}

	out := make([]byte, passwordHeader, passwordHeader+len(sealed))
	copy(out, kdf.Salt)
	binary.BigEndian.PutUint32(out[crypto.SaltSize:], uint32(kdf.Iterations))
	return append(out, sealed...), nil
}

func (p *Password) Unwrap(wrapped []byte) ([]byte, []byte, error) {
	if len(wrapped) < passwordHeader+crypto.NonceSize+crypto.TagSize {
		return nil, nil, fault.New(fault.ErrCipherFailure, "unwrap", p.id, crypto.ErrInvalidCiphertext)
	}
	iters := binary.BigEndian.Uint32(wrapped[crypto.SaltSize:passwordHeader])
	if iters == 0 || iters > MaxIterations {
		return nil, nil, fault.New(fault.ErrCipherFailure, "unwrap", p.id,
			fmt.Errorf("iteration count %d out of range", iters))
	}

	kdf := &crypto.KDF{
		Salt:       wrapped[:crypto.SaltSize],
		Iterations: int(iters),
	}
	sealer := crypto.NewSealer(kdf.DeriveKey(p.password), nil)
	defer sealer.Destroy()

	secret, err := sealer.Open(wrapped[passwordHeader:], []byte(p.id))
	if err != nil {
		return nil, nil, fault.New(fault.ErrCipherFailure, "unwrap", p.id, err)
	}
	return splitKey(secret)
}

// Destroy clears the passphrase from memory.
func (p *Password) Destroy() {
	crypto.ClearBytes(p.password)
}
