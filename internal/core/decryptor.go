package core

import (
	"errors"
	"fmt"

	"github.com/illarion/ofdcrypt/internal/archive"
	"github.com/illarion/ofdcrypt/internal/container"
	"github.com/illarion/ofdcrypt/internal/crypto"
	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/recipient"
	"github.com/illarion/ofdcrypt/internal/security"
	"github.com/illarion/ofdcrypt/internal/storage"
)

// Decryptor restores the plaintext of a package produced by Encryptor,
// using the session ledger and one recipient's wrapped key.
//
// Call Close on every exit path to remove the workspace.
type Decryptor struct {
	out       string
	cfg       config
	ws        *Workspace
	entries   []container.Entry
	unwrapper recipient.Unwrapper
	engine    *crypto.Engine
	decrypted bool
}

// NewDecryptor extracts the encrypted package at src. entries is the
// ledger of the session to reverse; WithAlgorithm must match the session
// cipher.
func NewDecryptor(src, out string, entries []container.Entry, u recipient.Unwrapper, opts ...Option) (*Decryptor, error) {
	if out == "" {
		return nil, fault.Invalid("new decryptor", "output path is empty")
	}
	if u == nil {
		return nil, fault.Invalid("new decryptor", "unwrapper is nil")
	}
	if _, err := container.LedgerFrom(entries); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)

	engine, err := crypto.NewEngine(cfg.algorithm)
	if err != nil {
		return nil, err
	}

	ws, _, err := openPackage(src, cfg)
	if err != nil {
		return nil, err
	}

	return &Decryptor{
		out:       out,
		cfg:       cfg,
		ws:        ws,
		entries:   append([]container.Entry(nil), entries...),
		unwrapper: u,
		engine:    engine,
	}, nil
}

// NewManifestDecryptor is NewDecryptor for a stored session manifest.
func NewManifestDecryptor(src, out string, m *storage.Manifest, u recipient.Unwrapper, opts ...Option) (*Decryptor, error) {
	if m == nil {
		return nil, fault.Invalid("new decryptor", "manifest is nil")
	}
	alg, err := crypto.ParseAlgorithm(m.Algorithm)
	if err != nil {
		return nil, err
	}
	return NewDecryptor(src, out, m.Entries, u, append(opts, WithAlgorithm(alg))...)
}

// Decrypt unwraps the session key from wrap, restores every ledger entry
// to its plaintext name and repackages the workspace. It returns the
// restored entries. Decrypt runs once per Decryptor.
func (d *Decryptor) Decrypt(wrap recipient.Wrap) ([]container.Entry, error) {
	if d.ws.Closed() {
		return nil, fault.New(fault.ErrClosed, "decrypt", "", nil)
	}
	if d.decrypted {
		return nil, fault.New(fault.ErrIllegalState, "decrypt", "", fmt.Errorf("already decrypted"))
	}

	fek, iv, err := d.unwrapper.Unwrap(wrap.Wrapped)
	if err != nil {
		return nil, err
	}
	km := &crypto.KeyMaterial{FEK: fek, IV: iv}
	defer km.Destroy()

	bs := d.cfg.algorithm.BlockSize()
	if len(fek) != bs || len(iv) != bs {
		return nil, fault.New(fault.ErrCipherFailure, "decrypt", wrap.RecipientID,
			fmt.Errorf("unwrapped key is %d/%d bytes, %s needs %d", len(fek), len(iv), d.cfg.algorithm, bs))
	}

	root, err := security.New(d.ws.Path())
	if err != nil {
		return nil, err
	}
	defer root.Close()

	for _, entry := range d.entries {
		if err := d.decryptEntry(root, entry, km); err != nil {
			return nil, err
		}
		d.cfg.logger.Debug("decrypted", "file", entry.Encrypted, "to", entry.Plain)
	}
	d.decrypted = true

	if err := archive.Pack(d.ws.Path(), d.out, archive.PackOptions{Logger: d.cfg.logger}); err != nil {
		return nil, err
	}
	d.cfg.logger.Info("package decrypted", "files", len(d.entries), "out", d.out)
	return append([]container.Entry(nil), d.entries...), nil
}

// decryptEntry validates both names before touching the filesystem, since
// the ledger comes from outside this process.
func (d *Decryptor) decryptEntry(root *security.Root, entry container.Entry, km *crypto.KeyMaterial) error {
	encRel, err := security.ValidateContainerPath(entry.Encrypted)
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", entry.Encrypted, err)
	}
	plainRel, err := security.ValidateContainerPath(entry.Plain)
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", entry.Plain, err)
	}

	in, err := root.Open(encRel)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := root.Create(plainRel)
	if err != nil {
		return err
	}

	_, err = crypto.DecryptFile(d.engine, km, in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fault.IO("close", entry.Plain, cerr)
	}
	if err != nil {
		if rerr := root.Remove(plainRel); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return fmt.Errorf("decrypt %s: %w", entry.Encrypted, err)
	}

	in.Close()
	return root.Remove(encRel)
}

// Close removes the workspace. Safe to call more than once.
func (d *Decryptor) Close() error {
	return d.ws.Close()
}
