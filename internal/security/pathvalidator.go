package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/illarion/ofdcrypt/internal/fault"
)

var (
	ErrPathEscapes  = fmt.Errorf("%w: path escapes root", fault.ErrPathTraversal)
	ErrAbsolutePath = fmt.Errorf("%w: absolute paths are not allowed", fault.ErrPathTraversal)
	ErrEmptyPath    = fmt.Errorf("%w: empty path not allowed", fault.ErrInvalidArgument)
)

const (
	DirPerm  = 0700
	FilePerm = 0600
)

// Root confines file operations to a destination directory. Names are
// checked lexically against the canonical root, and every write goes
// through os.Root so the kernel refuses escapes via symlinks as well.
type Root struct {
	root *os.Root
	path string
}

// New creates the destination directory if needed and opens it as a Root.
// The stored path is absolute with symlinks resolved.
func New(dir string) (*Root, error) {
	if dir == "" {
		return nil, fault.Invalid("open root", "destination root is empty")
	}
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return nil, fault.IO("mkdir", dir, err)
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fault.IO("abs", dir, err)
	}
	canonical, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fault.IO("canonicalize", dir, err)
	}

	root, err := os.OpenRoot(canonical)
	if err != nil {
		return nil, fault.IO("open root", canonical, err)
	}

	return &Root{root: root, path: canonical}, nil
}

// Close releases the root handle.
func (r *Root) Close() error {
	if r.root != nil {
		return r.root.Close()
	}
	return nil
}

// Path returns the canonical absolute root path.
func (r *Root) Path() string {
	return r.path
}

// Resolve maps an archive entry name to a path relative to the root and
// its absolute location. Backslashes are treated as separators, since
// some archivers emit them. The cleaned absolute target must be the root
// itself or lie beneath it.
func (r *Root) Resolve(name string) (rel, abs string, err error) {
	if name == "" {
		return "", "", ErrEmptyPath
	}

	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", "", fmt.Errorf("%w: %s", ErrAbsolutePath, name)
	}

	abs = filepath.Join(r.path, filepath.FromSlash(slashed))
	if abs != r.path && !strings.HasPrefix(abs, r.path+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	rel, err = filepath.Rel(r.path, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	return rel, abs, nil
}

// MkdirAll creates a directory tree beneath the root.
func (r *Root) MkdirAll(rel string) error {
	if rel == "." {
		return nil
	}
	if err := r.root.MkdirAll(rel, DirPerm); err != nil {
		return r.classify("mkdir", rel, err)
	}
	return nil
}

// Create creates or truncates a file beneath the root, creating missing
// parent directories first.
func (r *Root) Create(rel string) (*os.File, error) {
	if dir := filepath.Dir(rel); dir != "." {
		if err := r.MkdirAll(dir); err != nil {
			return nil, err
		}
	}
	f, err := r.root.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FilePerm)
	if err != nil {
		return nil, r.classify("create", rel, err)
	}
	return f, nil
}

// Open opens a file beneath the root for reading.
func (r *Root) Open(rel string) (*os.File, error) {
	f, err := r.root.Open(rel)
	if err != nil {
		return nil, r.classify("open", rel, err)
	}
	return f, nil
}

// Remove deletes a file beneath the root.
func (r *Root) Remove(rel string) error {
	if err := r.root.Remove(rel); err != nil {
		return r.classify("remove", rel, err)
	}
	return nil
}

// classify reports os.Root escape refusals as traversal, everything else
// as I/O failure.
func (r *Root) classify(op, rel string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && strings.Contains(pathErr.Err.Error(), "escapes") {
		return fault.New(fault.ErrPathTraversal, op, rel, err)
	}
	return fault.IO(op, rel, err)
}

// ValidateContainerPath validates a stored container path such as
// "/Doc_0/Document.xml" and returns its platform-relative form. Used for
// ledger entries that came from outside the current session.
func ValidateContainerPath(name string) (string, error) {
	trimmed := strings.TrimPrefix(name, "/")
	if trimmed == "" {
		return "", ErrEmptyPath
	}
	if strings.Contains(trimmed, `\`) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	platformPath := filepath.FromSlash(trimmed)
	if !filepath.IsLocal(platformPath) {
		if filepath.IsAbs(platformPath) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, name)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	return filepath.Clean(platformPath), nil
}
