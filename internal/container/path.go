package container

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/illarion/ofdcrypt/internal/fault"
)

// EncryptedSuffix is appended to a plaintext file name to derive the name
// of its ciphertext.
const EncryptedSuffix = ".enc"

// Path identifies a file inside an extracted package.
type Path struct {
	Name string // Logical name, "/"-rooted with forward slashes: /Doc_0/Document.xml
	Abs  string // Absolute location in the workspace
}

// Encrypted returns the ciphertext counterpart of p. It lives in the same
// directory, so the derivation is stable across runs.
func (p Path) Encrypted() Path {
	return Path{
		Name: p.Name + EncryptedSuffix,
		Abs:  p.Abs + EncryptedSuffix,
	}
}

// Dir returns the logical directory of p.
func (p Path) Dir() string {
	return path.Dir(p.Name)
}

func (p Path) String() string {
	return p.Name
}

// Normalize converts a platform path relative to a workspace root into a
// logical container name.
func Normalize(rel string) string {
	slashed := strings.ReplaceAll(filepath.ToSlash(rel), `\`, "/")
	return "/" + strings.TrimPrefix(path.Clean("/"+slashed), "/")
}

// Resolve maps a logical name back to a Path beneath root.
func Resolve(root, name string) Path {
	name = Normalize(name)
	return Path{
		Name: name,
		Abs:  filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(name, "/"))),
	}
}

// List walks root and returns every regular file accepted by filter,
// sorted by logical name. A nil filter includes everything.
func List(root string, filter Filter) ([]Path, error) {
	if root == "" {
		return nil, fault.Invalid("list", "workspace root is empty")
	}
	if filter == nil {
		filter = All
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fault.IO("abs", root, err)
	}

	var paths []Path
	err = filepath.WalkDir(absRoot, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil {
			return err
		}
		p := Path{Name: Normalize(rel), Abs: abs}
		if filter.Include(p.Name, p.Abs) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fault.IO("walk", root, err)
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i].Name < paths[j].Name })
	return paths, nil
}
