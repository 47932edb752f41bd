package archive

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"

	"github.com/illarion/ofdcrypt/internal/fault"
)

// PackOptions controls repackaging.
type PackOptions struct {
	// Logger is used for debug output. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Pack compresses every regular file beneath srcDir into a ZIP archive at
// dest. Missing parent directories of dest are created. The archive is
// written to a temporary file next to dest and renamed into place, so a
// failed pack never leaves a truncated package behind.
func Pack(srcDir, dest string, opts PackOptions) error {
	if srcDir == "" || dest == "" {
		return fault.Invalid("pack", "source directory and destination are required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	names, err := packList(srcDir)
	if err != nil {
		return err
	}

	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fault.IO("mkdir", destDir, err)
	}

	tmp, err := os.CreateTemp(destDir, ".ofd-pack-*")
	if err != nil {
		return fault.IO("create", destDir, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, name := range names {
		if err := packEntry(zw, srcDir, name); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fault.IO("finalize", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fault.IO("close", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fault.IO("rename", dest, err)
	}
	committed = true

	log.Debug("packed package", "dest", dest, "entries", len(names))
	return nil
}

// packList returns forward-slash names of all regular files beneath dir,
// sorted lexically.
func packList(dir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fault.IO("walk", dir, err)
	}
	sort.Strings(names)
	return names, nil
}

func packEntry(zw *zip.Writer, srcDir, name string) error {
	path := filepath.Join(srcDir, filepath.FromSlash(name))
	f, err := os.Open(path)
	if err != nil {
		return fault.IO("open", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fault.IO("stat", name, err)
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: info.ModTime(),
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fault.IO("write header", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fault.IO("write", name, err)
	}
	return nil
}
