package core

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/illarion/ofdcrypt/internal/recipient"
)

const testIters = 1000

// samplePackage is a minimal OFD layout keyed by zip entry name.
func samplePackage() map[string][]byte {
	return map[string][]byte{
		"OFD.xml":                        []byte(`<ofd:OFD xmlns:ofd="http://www.ofdspec.org/2016"/>`),
		"Doc_0/Document.xml":             []byte(`<ofd:Document><ofd:Pages/></ofd:Document>`),
		"Doc_0/Pages/Page_0/Content.xml": bytes.Repeat([]byte("<ofd:TextObject>page text</ofd:TextObject>\n"), 300),
		"Doc_0/Res/image.png":            {0x89, 'P', 'N', 'G', 0x00, 0x01, 0x02},
		"Doc_0/Signatures.xml":           []byte(`<ofd:Signatures/>`),
	}
}

// writePackage zips files into dir/name and returns the path.
func writePackage(t *testing.T, dir, name string, files map[string][]byte) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for entry, data := range files {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("Failed to create entry %q: %v", entry, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("Failed to write entry %q: %v", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write package: %v", err)
	}
	return path
}

// readPackage returns the files of a zip keyed by entry name.
func readPackage(t *testing.T, path string) map[string][]byte {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer zr.Close()

	files := make(map[string][]byte)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Failed to read entry %s: %v", f.Name, err)
		}
		files[f.Name] = data
	}
	return files
}

// treeFiles returns the files beneath dir keyed by slash path.
func treeFiles(t *testing.T, dir string) map[string][]byte {
	t.Helper()

	files := make(map[string][]byte)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.Mode().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to walk %s: %v", dir, err)
	}
	return files
}

func testPassword(id, pw string) *recipient.Password {
	p := recipient.NewPassword(id, []byte(pw))
	p.Iterations = testIters
	return p
}

func closeOrFail(t *testing.T, c io.Closer) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
