package crypto

import (
	"io"

	"github.com/illarion/ofdcrypt/internal/fault"
)

// KeyMaterial is the ephemeral envelope key of one encryption session.
// It is never persisted in plaintext; only recipient-wrapped forms leave
// the process.
type KeyMaterial struct {
	FEK []byte // File encryption key, one cipher block long
	IV  []byte // CBC initialization vector, one cipher block long
}

// GenerateKeyMaterial draws a fresh FEK and IV of blockSize bytes each
// from random (crypto/rand when nil).
func GenerateKeyMaterial(random io.Reader, blockSize int) (*KeyMaterial, error) {
	if blockSize <= 0 {
		return nil, fault.Invalid("generate key", "block size must be positive, got %d", blockSize)
	}

	fek, err := GenerateRandom(random, blockSize)
	if err != nil {
		return nil, fault.New(fault.ErrCipherFailure, "generate key", "", err)
	}
	iv, err := GenerateRandom(random, blockSize)
	if err != nil {
		ClearBytes(fek)
		return nil, fault.New(fault.ErrCipherFailure, "generate iv", "", err)
	}

	return &KeyMaterial{FEK: fek, IV: iv}, nil
}

// Destroy zeros the key and IV.
func (k *KeyMaterial) Destroy() {
	if k == nil {
		return
	}
	ClearBytes(k.FEK)
	ClearBytes(k.IV)
}
