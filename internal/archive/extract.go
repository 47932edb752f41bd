package archive

import (
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/security"
)

const (
	DefaultMaxBytes = 100 * 1024 * 1024 // 100 MiB
	BufferSize      = 4096              // Bytes copied per write during extraction
)

// ExtractOptions controls extraction limits.
type ExtractOptions struct {
	// MaxBytes is the total decompressed size allowed across all entries.
	// Zero or negative selects DefaultMaxBytes.
	MaxBytes int64

	// Logger is used for debug output. If nil, slog.Default() is used.
	Logger *slog.Logger
}

func (o ExtractOptions) maxBytes() int64 {
	if o.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return o.MaxBytes
}

func (o ExtractOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Report summarizes a completed extraction.
type Report struct {
	Entries int      // Entries processed, directories included
	Files   []string // Decoded names of extracted files, in archive order
	Bytes   int64    // Total decompressed bytes written
}

// ExtractFile extracts the package at path into destRoot.
func ExtractFile(path, destRoot string, opts ExtractOptions) (*Report, error) {
	if path == "" {
		return nil, fault.Invalid("extract", "source archive path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fault.New(fault.ErrInvalidArgument, "extract", path, err)
		}
		return nil, fault.IO("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fault.IO("stat", path, err)
	}
	if info.IsDir() {
		return nil, fault.Invalid("extract", "source %s is a directory", path)
	}

	return Extract(f, info.Size(), destRoot, opts)
}

// Extract unpacks a ZIP stream into destRoot. It aborts on the first entry
// that escapes the root or pushes the decompressed total past the budget;
// entries written before the failure are left for the caller to clean up
// along with the rest of the workspace.
func Extract(src io.ReaderAt, size int64, destRoot string, opts ExtractOptions) (*Report, error) {
	if src == nil {
		return nil, fault.Invalid("extract", "source archive is nil")
	}

	root, err := security.New(destRoot)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	zr, err := zip.NewReader(src, size)
	if zr == nil {
		return nil, fault.New(fault.ErrInvalidArgument, "extract", "", fmt.Errorf("not a zip archive: %w", err))
	}

	x := &extractor{
		root:   root,
		budget: opts.maxBytes(),
		buf:    make([]byte, BufferSize),
		log:    opts.logger(),
		report: &Report{},
	}

	for _, f := range zr.File {
		if err := x.entry(f); err != nil {
			return nil, err
		}
	}

	x.log.Debug("extracted package",
		"root", root.Path(),
		"entries", x.report.Entries,
		"bytes", x.report.Bytes,
	)
	return x.report, nil
}

type extractor struct {
	root    *security.Root
	budget  int64
	written int64
	buf     []byte
	log     *slog.Logger
	report  *Report
}

func (x *extractor) entry(f *zip.File) error {
	name, err := DecodeName(f.Name)
	if err != nil {
		return err
	}

	rel, _, err := x.root.Resolve(name)
	if err != nil {
		return fmt.Errorf("extract %s: %w", name, err)
	}
	x.report.Entries++

	if f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
		return x.root.MkdirAll(rel)
	}

	// Honest headers let an oversized entry fail before anything is
	// written; the streaming check in copy catches lying ones.
	if f.UncompressedSize64 > uint64(x.budget-x.written) {
		return x.capacity(name)
	}

	rc, err := openEntry(f)
	if err != nil {
		return fault.New(fault.ErrInvalidArgument, "open entry", name, err)
	}
	defer rc.Close()

	out, err := x.root.Create(rel)
	if err != nil {
		return err
	}

	start := x.written
	sum := crc32.NewIEEE()
	if err := x.copy(name, io.MultiWriter(out, sum), rc); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fault.IO("close", name, err)
	}

	if size := uint64(x.written - start); size != f.UncompressedSize64 {
		return fault.New(fault.ErrInvalidArgument, "extract", name,
			fmt.Errorf("entry is %d bytes, header says %d", size, f.UncompressedSize64))
	}
	if sum.Sum32() != f.CRC32 {
		return fault.New(fault.ErrInvalidArgument, "extract", name, zip.ErrChecksum)
	}

	x.report.Files = append(x.report.Files, name)
	x.log.Debug("extracted entry", "name", name, "total", x.written)
	return nil
}

// openEntry decompresses the raw entry data itself. The reader returned
// by f.Open stops at the declared size, which would hide an oversized
// entry behind a format error instead of the budget check.
func openEntry(f *zip.File) (io.ReadCloser, error) {
	raw, err := f.OpenRaw()
	if err != nil {
		return nil, err
	}
	switch f.Method {
	case zip.Store:
		return io.NopCloser(raw), nil
	case zip.Deflate:
		return flate.NewReader(raw), nil
	}
	return nil, fmt.Errorf("%w: method %d", zip.ErrAlgorithm, f.Method)
}

// copy streams one entry, checking the running total before each write.
func (x *extractor) copy(name string, out io.Writer, in io.Reader) error {
	for {
		n, readErr := in.Read(x.buf)
		if n > 0 {
			if x.written+int64(n) > x.budget {
				return x.capacity(name)
			}
			if _, err := out.Write(x.buf[:n]); err != nil {
				return fault.IO("write", name, err)
			}
			x.written += int64(n)
			x.report.Bytes = x.written
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fault.New(fault.ErrInvalidArgument, "read entry", name, readErr)
		}
	}
}

func (x *extractor) capacity(name string) error {
	return fault.New(fault.ErrCapacityExceeded, "extract", name,
		fmt.Errorf("limit is %d bytes", x.budget))
}
