package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strings"

	"github.com/tjfoc/gmsm/sm4"

	"github.com/illarion/ofdcrypt/internal/fault"
)

// Algorithm selects the block cipher used for content encryption.
type Algorithm int

const (
	SM4    Algorithm = iota // SM4-CBC, the OFD default
	AES128                  // AES-128-CBC
)

// BlockSize returns the cipher block size. FEK and IV have this length.
func (a Algorithm) BlockSize() int {
	switch a {
	case SM4:
		return sm4.BlockSize
	case AES128:
		return aes.BlockSize
	default:
		return 0
	}
}

// NewBlock creates the block cipher keyed with key.
func (a Algorithm) NewBlock(key []byte) (cipher.Block, error) {
	if len(key) != a.BlockSize() {
		return nil, fault.New(fault.ErrCipherFailure, "new cipher", "",
			fmt.Errorf("%s requires a %d-byte key, got %d", a, a.BlockSize(), len(key)))
	}

	var (
		block cipher.Block
		err   error
	)
	switch a {
	case SM4:
		block, err = sm4.NewCipher(key)
	case AES128:
		block, err = aes.NewCipher(key)
	default:
		return nil, fault.New(fault.ErrCipherFailure, "new cipher", "", fmt.Errorf("unsupported algorithm %d", int(a)))
	}
	if err != nil {
		return nil, fault.New(fault.ErrCipherFailure, "new cipher", "", err)
	}
	return block, nil
}

// String returns the identifier recorded in manifests.
func (a Algorithm) String() string {
	switch a {
	case SM4:
		return "SM4-CBC-PKCS7"
	case AES128:
		return "AES128-CBC-PKCS7"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// ParseAlgorithm accepts the manifest identifier or a short name
// ("sm4", "aes128").
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SM4", "SM4-CBC-PKCS7":
		return SM4, nil
	case "AES128", "AES-128", "AES128-CBC-PKCS7":
		return AES128, nil
	}
	return 0, fault.Invalid("parse algorithm", "unknown algorithm %q", s)
}
