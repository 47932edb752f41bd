package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/illarion/ofdcrypt/internal/core"
	"github.com/illarion/ofdcrypt/internal/crypto"
	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/storage"
)

// EncryptOptions are the parsed flags of the encrypt command.
type EncryptOptions struct {
	Source     string
	Out        string
	Manifest   string // Defaults to Out + ".manifest.json"
	Algorithm  string
	MaxSize    int64
	TempDir    string
	State      string // bbolt state database, optional
	Include    []string
	Exclude    []string
	Recipients RecipientFlags
	Verbose    bool
}

// ManifestPath returns the manifest file written next to out.
func ManifestPath(out string) string {
	return out + ".manifest.json"
}

// Encrypt encrypts the selected entries of a package and writes the
// session manifest.
func Encrypt(opts EncryptOptions, pw PasswordSource) (err error) {
	if opts.Source == "" || opts.Out == "" {
		return fault.Invalid("encrypt", "source package and -o are required")
	}
	alg, err := crypto.ParseAlgorithm(opts.Algorithm)
	if err != nil {
		return err
	}

	pipelineOpts := []core.Option{
		core.WithLogger(NewLogger(opts.Verbose)),
		core.WithAlgorithm(alg),
		core.WithMaxExtractSize(opts.MaxSize),
		core.WithTempDir(opts.TempDir),
	}
	if opts.State != "" {
		store, openErr := openState(opts.State)
		if openErr != nil {
			return openErr
		}
		defer func() { err = errors.Join(err, store.Close()) }()
		pipelineOpts = append(pipelineOpts, core.WithStateStore(store))
	}

	recipients, err := opts.Recipients.Recipients(pw)
	if err != nil {
		return err
	}

	enc, err := core.NewEncryptor(opts.Source, opts.Out, pipelineOpts...)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, enc.Close()) }()

	for _, r := range recipients {
		enc.AddRecipient(r)
	}
	if f := BuildFilter(opts.Include, opts.Exclude); f != nil {
		enc.SetFilter(f)
	}

	result, err := enc.Encrypt()
	if err != nil {
		return err
	}

	m := result.Manifest()
	manifestPath := opts.Manifest
	if manifestPath == "" {
		manifestPath = ManifestPath(opts.Out)
	}
	if err := storage.WriteManifestFile(manifestPath, m); err != nil {
		return err
	}

	fmt.Printf("Encrypted %d entries with %s (session %s)\n", len(result.Entries), result.Algorithm, result.SessionID)
	fmt.Printf("Recipients: %s\n", strings.Join(m.RecipientIDs(), ", "))
	fmt.Printf("Manifest: %s\n", manifestPath)
	return nil
}

// openState opens the state database, creating its buckets on first use.
func openState(path string) (*storage.Storage, error) {
	store, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return store, nil
}
