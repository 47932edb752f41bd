package core

import (
	"fmt"
	"io"
	"os"

	"github.com/tjfoc/gmsm/sm3"

	"github.com/illarion/ofdcrypt/internal/archive"
	"github.com/illarion/ofdcrypt/internal/container"
	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/security"
)

// DefaultSignedValuePath is where the signature value is stored inside
// the package.
const DefaultSignedValuePath = "/Doc_0/Signs/Sign_0/SignedValue.dat"

// Digest is the SM3 hash of one protected file.
type Digest struct {
	Name string
	SM3  []byte
}

// SignContainer produces a signature value over the protected files.
// Seal formats and certificate handling live behind this interface.
type SignContainer interface {
	Sign(digests []Digest) ([]byte, error)
}

// SignFunc adapts a function into a SignContainer.
type SignFunc func(digests []Digest) ([]byte, error)

func (f SignFunc) Sign(digests []Digest) ([]byte, error) {
	return f(digests)
}

// SignResult describes a completed signing pass.
type SignResult struct {
	Digests         []Digest
	SignedValuePath string
}

// Signer shares the Encryptor lifecycle: open a package, configure,
// sign once, close.
type Signer struct {
	out       string
	cfg       config
	ws        *Workspace
	sc        SignContainer
	filter    container.Filter
	valuePath string
	signed    bool
}

// NewSigner extracts the package at src. The signed package is written
// to out by Sign.
func NewSigner(src, out string, opts ...Option) (*Signer, error) {
	if out == "" {
		return nil, fault.Invalid("new signer", "output path is empty")
	}
	cfg := newConfig(opts)

	ws, _, err := openPackage(src, cfg)
	if err != nil {
		return nil, err
	}
	return &Signer{
		out:       out,
		cfg:       cfg,
		ws:        ws,
		filter:    container.All,
		valuePath: DefaultSignedValuePath,
	}, nil
}

// SetSignContainer sets the signature provider. nil is ignored.
func (s *Signer) SetSignContainer(sc SignContainer) *Signer {
	if sc != nil {
		s.sc = sc
	}
	return s
}

// SetFilter selects the protected files. nil is ignored.
func (s *Signer) SetFilter(f container.Filter) *Signer {
	if f != nil {
		s.filter = f
	}
	return s
}

// SetSignedValuePath overrides DefaultSignedValuePath. Empty is ignored.
func (s *Signer) SetSignedValuePath(name string) *Signer {
	if name != "" {
		s.valuePath = container.Normalize(name)
	}
	return s
}

// Sign hashes the selected files, stores the signature value returned by
// the SignContainer and repackages the workspace.
func (s *Signer) Sign() (*SignResult, error) {
	if s.ws.Closed() {
		return nil, fault.New(fault.ErrClosed, "sign", "", nil)
	}
	if s.signed {
		return nil, fault.New(fault.ErrIllegalState, "sign", "", fmt.Errorf("package already signed"))
	}
	if s.sc == nil {
		return nil, fault.Invalid("sign", "no sign container")
	}

	valueRel, err := security.ValidateContainerPath(s.valuePath)
	if err != nil {
		return nil, err
	}

	files, err := container.List(s.ws.Path(), container.And(s.filter, container.Exclude(s.valuePath)))
	if err != nil {
		return nil, err
	}

	digests := make([]Digest, 0, len(files))
	for _, p := range files {
		sum, err := digestFile(p)
		if err != nil {
			return nil, err
		}
		digests = append(digests, Digest{Name: p.Name, SM3: sum})
	}

	value, err := s.sc.Sign(digests)
	if err != nil {
		return nil, fault.New(fault.ErrCipherFailure, "sign", "", err)
	}

	root, err := security.New(s.ws.Path())
	if err != nil {
		return nil, err
	}
	defer root.Close()

	f, err := root.Create(valueRel)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(value); err != nil {
		f.Close()
		return nil, fault.IO("write", s.valuePath, err)
	}
	if err := f.Close(); err != nil {
		return nil, fault.IO("close", s.valuePath, err)
	}
	s.signed = true

	if err := archive.Pack(s.ws.Path(), s.out, archive.PackOptions{Logger: s.cfg.logger}); err != nil {
		return nil, err
	}
	s.cfg.logger.Info("package signed", "files", len(digests), "out", s.out)
	return &SignResult{Digests: digests, SignedValuePath: s.valuePath}, nil
}

func digestFile(p container.Path) ([]byte, error) {
	f, err := os.Open(p.Abs)
	if err != nil {
		return nil, fault.IO("open", p.Name, err)
	}
	defer f.Close()

	h := sm3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fault.IO("read", p.Name, err)
	}
	return h.Sum(nil), nil
}

// Close removes the workspace. Safe to call more than once.
func (s *Signer) Close() error {
	return s.ws.Close()
}
