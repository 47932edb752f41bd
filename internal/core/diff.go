package core

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/illarion/ofdcrypt/internal/container"
	"github.com/illarion/ofdcrypt/internal/fault"
)

const (
	BinarySampleSize   = 8192 // Bytes to sample for text/binary detection
	BinaryThresholdPct = 10   // Max % non-printable chars for text files
)

// FileDiff is the change to one file present in both packages.
type FileDiff struct {
	Name string
	Diff string // Unified diff, or a one-line note for binary files
}

// PackageDiff compares the contents of two packages by container path.
type PackageDiff struct {
	Added     []string // Only in the second package
	Removed   []string // Only in the first package
	Changed   []FileDiff
	Unchanged int
}

// Empty reports whether the packages hold identical files.
func (d *PackageDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

func (d *PackageDiff) String() string {
	var b strings.Builder
	for _, name := range d.Removed {
		fmt.Fprintf(&b, "Only in a: %s\n", name)
	}
	for _, name := range d.Added {
		fmt.Fprintf(&b, "Only in b: %s\n", name)
	}
	for _, c := range d.Changed {
		b.WriteString(c.Diff)
	}
	return b.String()
}

// DiffPackages extracts both packages into their own workspaces and
// compares them file by file. Typical use is checking which entries an
// encryption or signing pass touched.
func DiffPackages(a, b string, opts ...Option) (result *PackageDiff, err error) {
	cfg := newConfig(opts)

	wsA, _, err := openPackage(a, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, wsA.Close()) }()

	wsB, _, err := openPackage(b, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, wsB.Close()) }()

	filesA, err := container.List(wsA.Path(), nil)
	if err != nil {
		return nil, err
	}
	filesB, err := container.List(wsB.Path(), nil)
	if err != nil {
		return nil, err
	}

	inB := make(map[string]container.Path, len(filesB))
	for _, p := range filesB {
		inB[p.Name] = p
	}

	result = &PackageDiff{}
	for _, pa := range filesA {
		pb, ok := inB[pa.Name]
		if !ok {
			result.Removed = append(result.Removed, pa.Name)
			continue
		}
		delete(inB, pa.Name)

		dataA, err := os.ReadFile(pa.Abs)
		if err != nil {
			return nil, fault.IO("read", pa.Name, err)
		}
		dataB, err := os.ReadFile(pb.Abs)
		if err != nil {
			return nil, fault.IO("read", pb.Name, err)
		}

		diff, err := GenerateUnifiedDiff(strings.TrimPrefix(pa.Name, "/"), dataA, dataB)
		if err != nil {
			return nil, err
		}
		if diff == "" {
			result.Unchanged++
			continue
		}
		result.Changed = append(result.Changed, FileDiff{Name: pa.Name, Diff: diff})
	}
	for _, pb := range filesB {
		if _, ok := inB[pb.Name]; ok {
			result.Added = append(result.Added, pb.Name)
		}
	}
	return result, nil
}

// DetectFileType determines if a file is likely text or binary.
// Returns true if the file appears to be text.
//
// Detection heuristic (in order):
//  1. Null bytes present → binary (ciphertext, images, fonts)
//  2. Invalid UTF-8 → binary
//  3. >10% non-printable control chars → binary
func DetectFileType(data []byte) bool {
	if len(data) == 0 {
		return true
	}

	if bytes.IndexByte(data, 0) != -1 {
		return false
	}

	sampleSize := BinarySampleSize
	if len(data) < sampleSize {
		sampleSize = len(data)
	}
	sample := data[:sampleSize]

	if !utf8.Valid(sample) {
		return false
	}

	nonPrintable := 0
	for _, b := range sample {
		// Allow common whitespace: space, tab, newline, carriage return
		if b < 32 && b != 9 && b != 10 && b != 13 {
			nonPrintable++
		}
		if b == 127 { // DEL character
			nonPrintable++
		}
	}

	threshold := len(sample) * BinaryThresholdPct / 100
	return nonPrintable <= threshold
}

// CompareFiles checks if two file contents are identical
// Returns true if files are identical (based on SHA-256 hash)
func CompareFiles(a, b []byte) bool {
	hashA := sha256.Sum256(a)
	hashB := sha256.Sum256(b)
	return bytes.Equal(hashA[:], hashB[:])
}

// GenerateUnifiedDiff generates a unified diff using go-diff library
// Returns the diff output, or empty string if files are identical
func GenerateUnifiedDiff(path string, oldData, newData []byte) (string, error) {
	if CompareFiles(oldData, newData) {
		return "", nil
	}

	if !DetectFileType(oldData) || !DetectFileType(newData) {
		return fmt.Sprintf("Binary file %s has changed\n", path), nil
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff for better output
	oldStr, newStr := string(oldData), string(newData)
	a, b, lineArray := dmp.DiffLinesToChars(oldStr, newStr)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(oldStr, diffs)
	if len(patches) == 0 {
		return "", nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("--- a/%s\n", path))
	result.WriteString(fmt.Sprintf("+++ b/%s\n", path))
	result.WriteString(dmp.PatchToText(patches))

	return result.String(), nil
}
