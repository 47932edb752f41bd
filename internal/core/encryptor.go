package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/illarion/ofdcrypt/internal/archive"
	"github.com/illarion/ofdcrypt/internal/container"
	"github.com/illarion/ofdcrypt/internal/crypto"
	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/recipient"
	"github.com/illarion/ofdcrypt/internal/security"
	"github.com/illarion/ofdcrypt/internal/storage"
)

// Result describes one encryption session.
type Result struct {
	SessionID string
	Algorithm crypto.Algorithm
	Source    string // Package the session read
	Scope     string // Absolute path of the package it wrote
	Entries   []container.Entry
	Wraps     []recipient.Wrap
}

// Manifest converts r into its persisted form.
func (r *Result) Manifest() *storage.Manifest {
	m := storage.NewManifest(r.Algorithm.String())
	m.ID = r.SessionID
	m.Source = r.Source
	m.Scope = r.Scope
	m.Entries = append(m.Entries, r.Entries...)
	m.Wraps = append(m.Wraps, r.Wraps...)
	return m
}

// Encryptor encrypts selected files of an OFD package for a set of
// recipients and writes the result to a new package.
//
// Call Close on every exit path to remove the workspace.
type Encryptor struct {
	src   string
	out   string
	scope string
	cfg   config
	ws    *Workspace

	recipients []recipient.Recipient
	filter     container.Filter
	random     io.Reader

	engine *crypto.Engine
	done   *container.Ledger // Everything encrypted by this instance
}

// NewEncryptor extracts the package at src into a fresh workspace. The
// encrypted package is written to out by Encrypt.
func NewEncryptor(src, out string, opts ...Option) (*Encryptor, error) {
	if out == "" {
		return nil, fault.Invalid("new encryptor", "output path is empty")
	}
	cfg := newConfig(opts)

	scope, err := filepath.Abs(out)
	if err != nil {
		return nil, fault.IO("abs", out, err)
	}
	engine, err := crypto.NewEngine(cfg.algorithm)
	if err != nil {
		return nil, err
	}

	ws, report, err := openPackage(src, cfg)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("package opened", "src", src, "entries", report.Entries, "bytes", report.Bytes)

	return &Encryptor{
		src:    src,
		out:    out,
		scope:  scope,
		cfg:    cfg,
		ws:     ws,
		filter: container.All,
		engine: engine,
		done:   container.NewLedger(),
	}, nil
}

// AddRecipient registers a recipient. nil is ignored.
func (e *Encryptor) AddRecipient(r recipient.Recipient) *Encryptor {
	if r != nil {
		e.recipients = append(e.recipients, r)
	}
	return e
}

// SetFilter selects the files to encrypt. nil is ignored.
func (e *Encryptor) SetFilter(f container.Filter) *Encryptor {
	if f != nil {
		e.filter = f
	}
	return e
}

// SetRandom overrides crypto/rand for the session FEK and IV. Recipients
// draw their wrap randomness from their own source. nil is ignored.
func (e *Encryptor) SetRandom(r io.Reader) *Encryptor {
	if r != nil {
		e.random = r
	}
	return e
}

// Workspace returns the workspace root.
func (e *Encryptor) Workspace() string {
	return e.ws.Path()
}

// Encrypt runs one session: it encrypts every selected file that has not
// been encrypted yet, records the ledger, and repackages the workspace.
//
// A session is all or nothing. Plaintexts are removed only once every
// ciphertext is written, and any failure before the package is written
// restores the workspace, the state store and the done ledger to where
// they were before the call.
func (e *Encryptor) Encrypt() (*Result, error) {
	if e.ws.Closed() {
		return nil, fault.New(fault.ErrClosed, "encrypt", "", nil)
	}
	if len(e.recipients) == 0 {
		return nil, fault.Invalid("encrypt", "no recipients")
	}
	log := e.cfg.logger

	files, err := container.List(e.ws.Path(), e.filter)
	if err != nil {
		return nil, err
	}
	files, err = e.pending(files)
	if err != nil {
		return nil, err
	}

	km, err := crypto.GenerateKeyMaterial(e.random, e.cfg.algorithm.BlockSize())
	if err != nil {
		return nil, err
	}
	defer km.Destroy()

	wraps, err := recipient.WrapAll(e.recipients, km)
	if err != nil {
		return nil, err
	}

	manifest := storage.NewManifest(e.cfg.algorithm.String())
	manifest.Source = e.src
	manifest.Scope = e.scope
	manifest.Wraps = wraps
	session := container.NewLedger()

	tx := &pass{engine: e.engine, km: km}
	abort := func(err error) (*Result, error) {
		log.Debug("rolling back session", "session", manifest.ID, "files", len(tx.written))
		if rerr := tx.rollback(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, err
	}

	for _, p := range files {
		if err := e.encryptFile(p, km); err != nil {
			return abort(err)
		}
		tx.written = append(tx.written, p)
		enc := p.Encrypted()
		if err := session.Add(p.Name, enc.Name); err != nil {
			return abort(err)
		}
		log.Debug("encrypted", "file", p.Name, "to", enc.Name)
	}
	if err := tx.removePlaintexts(); err != nil {
		return abort(err)
	}

	manifest.Entries = session.Entries()
	if err := e.record(manifest); err != nil {
		return abort(err)
	}

	if err := archive.Pack(e.ws.Path(), e.out, archive.PackOptions{Logger: log}); err != nil {
		return abort(errors.Join(err, e.unrecord(manifest)))
	}

	for _, en := range manifest.Entries {
		if err := e.done.Add(en.Plain, en.Encrypted); err != nil {
			return nil, err
		}
	}

	log.Info("package encrypted",
		"session", manifest.ID,
		"files", session.Len(),
		"recipients", len(wraps),
		"out", e.out,
	)
	return &Result{
		SessionID: manifest.ID,
		Algorithm: e.cfg.algorithm,
		Source:    e.src,
		Scope:     e.scope,
		Entries:   manifest.Entries,
		Wraps:     wraps,
	}, nil
}

// record persists the manifest and then the done markers of its entries.
// The manifest is removed again if the markers cannot be written.
func (e *Encryptor) record(m *storage.Manifest) error {
	if e.cfg.store == nil {
		return nil
	}
	if err := e.cfg.store.PutManifest(m); err != nil {
		return fault.IO("put manifest", m.ID, err)
	}
	if err := e.cfg.store.MarkDoneAll(e.scope, m.ID, plainNames(m.Entries)...); err != nil {
		err = fault.IO("mark done", e.scope, err)
		if derr := e.cfg.store.DeleteManifest(m.ID); derr != nil {
			err = errors.Join(err, fault.IO("delete manifest", m.ID, derr))
		}
		return err
	}
	return nil
}

// unrecord undoes record.
func (e *Encryptor) unrecord(m *storage.Manifest) error {
	if e.cfg.store == nil {
		return nil
	}
	var errs []error
	if err := e.cfg.store.UnmarkDone(e.scope, plainNames(m.Entries)...); err != nil {
		errs = append(errs, fault.IO("unmark done", e.scope, err))
	}
	if err := e.cfg.store.DeleteManifest(m.ID); err != nil {
		errs = append(errs, fault.IO("delete manifest", m.ID, err))
	}
	return errors.Join(errs...)
}

func plainNames(entries []container.Entry) []string {
	names := make([]string, len(entries))
	for i, en := range entries {
		names[i] = en.Plain
	}
	return names
}

// pending drops files that an earlier session already produced or
// consumed. A plaintext marked done in the state store is only skipped
// while its ciphertext is present, so a stale marker never leaves a file
// unencrypted.
func (e *Encryptor) pending(files []container.Path) ([]container.Path, error) {
	var marked map[string]string
	if e.cfg.store != nil {
		var err error
		marked, err = e.cfg.store.DonePaths(e.scope)
		if err != nil {
			return nil, fault.IO("done paths", e.scope, err)
		}
	}

	present := make(map[string]bool, len(files))
	for _, p := range files {
		present[p.Name] = true
	}

	out := files[:0:0]
	for _, p := range files {
		if e.done.Contains(p.Name) {
			continue
		}
		if plain, ok := strings.CutSuffix(p.Name, container.EncryptedSuffix); ok {
			if _, ok := marked[plain]; ok {
				continue
			}
		}
		if _, ok := marked[p.Name]; ok && present[p.Encrypted().Name] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// encryptFile writes the ciphertext of p next to it. p itself is left in
// place; a partial ciphertext is removed on failure.
func (e *Encryptor) encryptFile(p container.Path, km *crypto.KeyMaterial) error {
	enc := p.Encrypted()

	in, err := os.Open(p.Abs)
	if err != nil {
		return fault.IO("open", p.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(enc.Abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, security.FilePerm)
	if err != nil {
		return fault.IO("create", enc.Name, err)
	}

	_, err = crypto.EncryptFile(e.engine, km, in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fault.IO("close", enc.Name, cerr)
	}
	if err != nil {
		if rerr := os.Remove(enc.Abs); rerr != nil {
			err = errors.Join(err, fault.IO("remove partial", enc.Name, rerr))
		}
		return fmt.Errorf("encrypt %s: %w", p.Name, err)
	}
	return nil
}

// pass tracks the files one Encrypt call has touched so that a failure
// can put the workspace back.
type pass struct {
	engine  *crypto.Engine
	km      *crypto.KeyMaterial
	written []container.Path // Ciphertext created, in order
	removed int              // Leading entries of written whose plaintext is gone
}

// removePlaintexts deletes the plaintext of every written file.
func (tx *pass) removePlaintexts() error {
	for _, p := range tx.written[tx.removed:] {
		if err := os.Remove(p.Abs); err != nil {
			return fault.IO("remove plaintext", p.Name, err)
		}
		tx.removed++
	}
	return nil
}

// rollback restores every removed plaintext from its ciphertext and then
// deletes the ciphertexts of the pass. A ciphertext whose plaintext could
// not be restored is kept, since it is the only copy left.
func (tx *pass) rollback() error {
	var errs []error
	for i, p := range tx.written {
		enc := p.Encrypted()
		if i < tx.removed {
			if err := tx.restore(p); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if err := os.Remove(enc.Abs); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fault.IO("remove ciphertext", enc.Name, err))
		}
	}
	tx.written, tx.removed = nil, 0
	return errors.Join(errs...)
}

// restore decrypts the ciphertext of p back to p.
func (tx *pass) restore(p container.Path) error {
	enc := p.Encrypted()

	in, err := os.Open(enc.Abs)
	if err != nil {
		return fault.IO("open", enc.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(p.Abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, security.FilePerm)
	if err != nil {
		return fault.IO("restore", p.Name, err)
	}

	_, err = crypto.DecryptFile(tx.engine, tx.km, in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fault.IO("close", p.Name, cerr)
	}
	if err != nil {
		if rerr := os.Remove(p.Abs); rerr != nil {
			err = errors.Join(err, fault.IO("remove partial", p.Name, rerr))
		}
		return fmt.Errorf("restore %s: %w", p.Name, err)
	}
	return nil
}

// Close removes the workspace. Safe to call more than once.
func (e *Encryptor) Close() error {
	return e.ws.Close()
}
