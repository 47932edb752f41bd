package core

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/illarion/ofdcrypt/internal/archive"
	"github.com/illarion/ofdcrypt/internal/fault"
)

// Workspace is a temporary directory exclusively owned by one pipeline.
type Workspace struct {
	dir    string
	closed bool
	log    *slog.Logger
}

// NewWorkspace creates an empty workspace beneath parent (os.TempDir()
// when empty).
func NewWorkspace(parent string, log *slog.Logger) (*Workspace, error) {
	if log == nil {
		log = slog.Default()
	}
	dir, err := os.MkdirTemp(parent, "ofd-tmp-")
	if err != nil {
		return nil, fault.IO("create workspace", parent, err)
	}
	// Extraction and containment checks compare canonical paths.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	log.Debug("workspace created", "dir", dir)
	return &Workspace{dir: dir, log: log}, nil
}

// Path returns the workspace root.
func (w *Workspace) Path() string {
	return w.dir
}

// Closed reports whether Close has been called.
func (w *Workspace) Closed() bool {
	return w.closed
}

// Close removes the workspace. Only the first call does any work. A
// removal failure is returned as fault.ErrWorkspaceTeardown; the
// workspace still counts as closed.
func (w *Workspace) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := os.RemoveAll(w.dir); err != nil {
		return fault.New(fault.ErrWorkspaceTeardown, "close", w.dir, err)
	}
	w.log.Debug("workspace removed", "dir", w.dir)
	return nil
}

// openPackage creates a workspace and extracts src into it. On failure
// the workspace is removed before returning.
func openPackage(src string, cfg config) (*Workspace, *archive.Report, error) {
	if src == "" {
		return nil, nil, fault.Invalid("open", "source package path is empty")
	}
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fault.New(fault.ErrInvalidArgument, "open", src, err)
		}
		return nil, nil, fault.IO("stat", src, err)
	}
	if info.IsDir() {
		return nil, nil, fault.Invalid("open", "source %s is a directory", src)
	}

	ws, err := NewWorkspace(cfg.tempDir, cfg.logger)
	if err != nil {
		return nil, nil, err
	}

	report, err := archive.ExtractFile(src, ws.Path(), archive.ExtractOptions{
		MaxBytes: cfg.maxExtract,
		Logger:   cfg.logger,
	})
	if err != nil {
		return nil, nil, errors.Join(err, ws.Close())
	}
	return ws, report, nil
}
