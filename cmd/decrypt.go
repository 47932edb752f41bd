package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/illarion/ofdcrypt/internal/core"
	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/storage"
)

// DecryptOptions are the parsed flags of the decrypt command.
type DecryptOptions struct {
	Source   string
	Out      string
	Manifest string // Defaults to Source + ".manifest.json"
	State    string // Read the manifest from this database instead
	Session  string // Session id in State
	MaxSize  int64
	TempDir  string
	Identity IdentityFlags
	Verbose  bool
}

// LoadManifest finds the session manifest for a decrypt run.
func LoadManifest(opts DecryptOptions) (m *storage.Manifest, err error) {
	if opts.State == "" {
		path := opts.Manifest
		if path == "" {
			path = ManifestPath(opts.Source)
		}
		return storage.ReadManifestFile(path)
	}

	if opts.Session == "" {
		return nil, fault.Invalid("decrypt", "-session is required with -state")
	}
	store, err := storage.Open(opts.State)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	m, err = store.GetManifest(opts.Session)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fault.New(fault.ErrInvalidArgument, "decrypt", opts.Session, err)
	}
	return m, err
}

// Decrypt restores the plaintext entries of an encrypted package.
func Decrypt(opts DecryptOptions, pw PasswordSource) (err error) {
	if opts.Source == "" || opts.Out == "" {
		return fault.Invalid("decrypt", "encrypted package and -o are required")
	}

	m, err := LoadManifest(opts)
	if err != nil {
		return err
	}

	u, id, err := opts.Identity.Unwrapper(pw)
	if err != nil {
		return err
	}
	wrap, ok := m.Wrap(id)
	if !ok {
		return fault.Invalid("decrypt", "session %s has no key for %s (recipients: %s)",
			m.ID, id, strings.Join(m.RecipientIDs(), ", "))
	}

	dec, err := core.NewManifestDecryptor(opts.Source, opts.Out, m, u,
		core.WithLogger(NewLogger(opts.Verbose)),
		core.WithMaxExtractSize(opts.MaxSize),
		core.WithTempDir(opts.TempDir),
	)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, dec.Close()) }()

	restored, err := dec.Decrypt(wrap)
	if err != nil {
		return err
	}

	fmt.Printf("Decrypted %d entries (session %s) to %s\n", len(restored), m.ID, opts.Out)
	return nil
}
