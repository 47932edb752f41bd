package crypto

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"io"

	"github.com/illarion/ofdcrypt/internal/fault"
)

// ChunkSize is the number of bytes read from a file per Update call.
const ChunkSize = 4096

// State is the position of an Engine in its lifecycle.
type State int

const (
	StateIdle     State = iota // No key loaded; Init is the only legal step
	StateActive                // Init done; Update and Final are legal
	StateFinished              // Final done; Init starts the next file
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrBadPadding = errors.New("invalid PKCS#7 padding")

// Engine is a streaming CBC/PKCS#7 transformer. One Engine processes a
// whole file set sequentially: Init, Update any number of times, Final,
// then Init again for the next file. Out-of-order calls fail with
// fault.ErrIllegalState instead of producing corrupt output.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	alg     Algorithm
	bs      int
	state   State
	encrypt bool
	mode    cipher.BlockMode
	pending []byte // Partial block (encrypt) or held-back last block (decrypt)

	bufIn  []byte
	bufOut []byte
}

// NewEngine creates an idle engine for alg.
func NewEngine(alg Algorithm) (*Engine, error) {
	bs := alg.BlockSize()
	if bs == 0 {
		return nil, fault.Invalid("new engine", "unsupported algorithm %d", int(alg))
	}
	return &Engine{
		alg:     alg,
		bs:      bs,
		pending: make([]byte, 0, bs),
		bufIn:   make([]byte, ChunkSize),
		bufOut:  make([]byte, ChunkSize+bs),
	}, nil
}

// Algorithm returns the engine's cipher.
func (e *Engine) Algorithm() Algorithm {
	return e.alg
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Init loads key and iv for one file. Legal from idle or finished.
func (e *Engine) Init(encrypt bool, key, iv []byte) error {
	if e.state == StateActive {
		return e.illegal("init")
	}
	if len(iv) != e.bs {
		return fault.New(fault.ErrCipherFailure, "init", "",
			fmt.Errorf("iv must be %d bytes, got %d", e.bs, len(iv)))
	}

	block, err := e.alg.NewBlock(key)
	if err != nil {
		return err
	}
	if encrypt {
		e.mode = cipher.NewCBCEncrypter(block, iv)
	} else {
		e.mode = cipher.NewCBCDecrypter(block, iv)
	}
	e.encrypt = encrypt
	e.pending = e.pending[:0]
	e.state = StateActive
	return nil
}

// Update transforms as many whole blocks of buffered input plus in as it
// can and writes them to out, returning the byte count. out must hold at
// least len(in)+BlockSize bytes. Decryption always holds back the last
// full block so Final can strip its padding.
func (e *Engine) Update(in, out []byte) (int, error) {
	if e.state != StateActive {
		return 0, e.illegal("update")
	}

	total := len(e.pending) + len(in)
	n := total - total%e.bs
	if !e.encrypt && n == total && n > 0 {
		n -= e.bs
	}
	if len(out) < n {
		return 0, fault.New(fault.ErrCipherFailure, "update", "",
			fmt.Errorf("output buffer too small: %d < %d", len(out), n))
	}
	if n == 0 {
		e.pending = append(e.pending, in...)
		return 0, nil
	}

	written := 0
	if len(e.pending) > 0 {
		fill := e.bs - len(e.pending)
		e.pending = append(e.pending, in[:fill]...)
		e.mode.CryptBlocks(out[:e.bs], e.pending)
		e.pending = e.pending[:0]
		in = in[fill:]
		written = e.bs
	}

	rest := n - written
	e.mode.CryptBlocks(out[written:n], in[:rest])
	e.pending = append(e.pending, in[rest:]...)
	return n, nil
}

// Final completes the current file. Encryption emits the PKCS#7 padded
// last block, a full block of padding when the input was block aligned.
// Decryption validates and strips the padding. out must hold at least
// BlockSize bytes.
func (e *Engine) Final(out []byte) (int, error) {
	if e.state != StateActive {
		return 0, e.illegal("final")
	}
	defer e.finish()

	if len(out) < e.bs {
		return 0, fault.New(fault.ErrCipherFailure, "final", "",
			fmt.Errorf("output buffer too small: %d < %d", len(out), e.bs))
	}

	if e.encrypt {
		pad := e.bs - len(e.pending)
		for i := 0; i < pad; i++ {
			e.pending = append(e.pending, byte(pad))
		}
		e.mode.CryptBlocks(out[:e.bs], e.pending)
		return e.bs, nil
	}

	if len(e.pending) != e.bs {
		return 0, fault.New(fault.ErrCipherFailure, "final", "",
			fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrBadPadding))
	}
	last := make([]byte, e.bs)
	e.mode.CryptBlocks(last, e.pending)
	defer ClearBytes(last)

	pad := int(last[e.bs-1])
	if pad == 0 || pad > e.bs {
		return 0, fault.New(fault.ErrCipherFailure, "final", "", ErrBadPadding)
	}
	for _, b := range last[e.bs-pad:] {
		if int(b) != pad {
			return 0, fault.New(fault.ErrCipherFailure, "final", "", ErrBadPadding)
		}
	}
	return copy(out, last[:e.bs-pad]), nil
}

// Reset discards any loaded key and buffered data. Legal from any state.
func (e *Engine) Reset() {
	ClearBytes(e.pending[:cap(e.pending)])
	e.pending = e.pending[:0]
	e.mode = nil
	e.state = StateIdle
}

func (e *Engine) finish() {
	ClearBytes(e.pending[:cap(e.pending)])
	e.pending = e.pending[:0]
	e.mode = nil
	e.state = StateFinished
}

func (e *Engine) illegal(op string) error {
	return fault.New(fault.ErrIllegalState, op, "", fmt.Errorf("engine is %s", e.state))
}

// Process runs one complete Init/Update*/Final cycle, streaming src to
// dst in ChunkSize reads. It returns the number of bytes written to dst.
// On failure the engine is reset.
func (e *Engine) Process(encrypt bool, km *KeyMaterial, dst io.Writer, src io.Reader) (int64, error) {
	if km == nil {
		return 0, fault.Invalid("process", "key material is nil")
	}
	if err := e.Init(encrypt, km.FEK, km.IV); err != nil {
		return 0, err
	}

	written, err := e.stream(dst, src)
	if err != nil {
		e.Reset()
		return written, err
	}
	return written, nil
}

func (e *Engine) stream(dst io.Writer, src io.Reader) (int64, error) {
	var written int64
	for {
		n, readErr := src.Read(e.bufIn)
		if n > 0 {
			out, err := e.Update(e.bufIn[:n], e.bufOut)
			if err != nil {
				return written, err
			}
			if out > 0 {
				if _, err := dst.Write(e.bufOut[:out]); err != nil {
					return written, fault.IO("write", "", err)
				}
				written += int64(out)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, fault.IO("read", "", readErr)
		}
	}

	out, err := e.Final(e.bufOut)
	if err != nil {
		return written, err
	}
	if _, err := dst.Write(e.bufOut[:out]); err != nil {
		return written, fault.IO("write", "", err)
	}
	return written + int64(out), nil
}

// EncryptFile streams the plaintext in to out as padded ciphertext.
func EncryptFile(e *Engine, km *KeyMaterial, in io.Reader, out io.Writer) (int64, error) {
	return e.Process(true, km, out, in)
}

// DecryptFile streams the ciphertext in to out, stripping the padding.
func DecryptFile(e *Engine, km *KeyMaterial, in io.Reader, out io.Writer) (int64, error) {
	return e.Process(false, km, out, in)
}
