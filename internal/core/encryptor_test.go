package core

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/illarion/ofdcrypt/internal/container"
	"github.com/illarion/ofdcrypt/internal/crypto"
	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/recipient"
	"github.com/illarion/ofdcrypt/internal/storage"
)

func TestEncrypt_ReplacesSelectedFiles(t *testing.T) {
	dir := t.TempDir()
	original := samplePackage()
	src := writePackage(t, dir, "in.ofd", original)
	out := filepath.Join(dir, "nested", "out", "enc.ofd")

	enc, err := NewEncryptor(src, out)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)

	enc.AddRecipient(testPassword("password:alice", "pw")).
		SetFilter(container.Exclude("/Doc_0/Signatures.xml"))

	result, err := enc.Encrypt()
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if result.Algorithm != crypto.SM4 {
		t.Errorf("Expected SM4 by default, got %s", result.Algorithm)
	}
	if result.SessionID == "" {
		t.Error("Result should carry a session id")
	}
	if len(result.Wraps) != 1 || result.Wraps[0].RecipientID != "password:alice" {
		t.Errorf("Unexpected wraps: %+v", result.Wraps)
	}

	wantEntries := []container.Entry{
		{Plain: "/Doc_0/Document.xml", Encrypted: "/Doc_0/Document.xml.enc"},
		{Plain: "/Doc_0/Pages/Page_0/Content.xml", Encrypted: "/Doc_0/Pages/Page_0/Content.xml.enc"},
		{Plain: "/Doc_0/Res/image.png", Encrypted: "/Doc_0/Res/image.png.enc"},
		{Plain: "/OFD.xml", Encrypted: "/OFD.xml.enc"},
	}
	if diff := cmp.Diff(wantEntries, result.Entries); diff != "" {
		t.Errorf("Ledger mismatch (-want +got):\n%s", diff)
	}

	// Output parent directories are created by the repackager.
	packed := readPackage(t, out)
	if len(packed) != len(original) {
		t.Errorf("Expected %d entries in output, got %d", len(original), len(packed))
	}
	for _, e := range wantEntries {
		plainName := strings.TrimPrefix(e.Plain, "/")
		if _, ok := packed[plainName]; ok {
			t.Errorf("Plaintext %s should be gone from output", plainName)
		}
		ciphertext, ok := packed[strings.TrimPrefix(e.Encrypted, "/")]
		if !ok {
			t.Errorf("Ciphertext %s missing from output", e.Encrypted)
			continue
		}
		bs := crypto.SM4.BlockSize()
		wantLen := (len(original[plainName])/bs + 1) * bs
		if len(ciphertext) != wantLen {
			t.Errorf("%s: ciphertext length %d, want %d", e.Encrypted, len(ciphertext), wantLen)
		}
	}

	// Excluded file stays byte-identical, in the workspace and the output.
	sig := "Doc_0/Signatures.xml"
	if !bytes.Equal(packed[sig], original[sig]) {
		t.Errorf("Excluded file changed in output: %q", packed[sig])
	}
	ws, err := os.ReadFile(filepath.Join(enc.Workspace(), filepath.FromSlash(sig)))
	if err != nil {
		t.Fatalf("Excluded file missing from workspace: %v", err)
	}
	if !bytes.Equal(ws, original[sig]) {
		t.Error("Excluded file changed in workspace")
	}
}

func TestEncrypt_NoRecipients(t *testing.T) {
	dir := t.TempDir()
	src := writePackage(t, dir, "in.ofd", samplePackage())
	out := filepath.Join(dir, "out.ofd")

	enc, err := NewEncryptor(src, out)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)

	before := treeFiles(t, enc.Workspace())

	enc.AddRecipient(nil)
	if _, err := enc.Encrypt(); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Fatalf("Expected ErrInvalidArgument, got %v", err)
	}

	if diff := cmp.Diff(before, treeFiles(t, enc.Workspace())); diff != "" {
		t.Errorf("Workspace modified without recipients (-before +after):\n%s", diff)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("No output should be written without recipients")
	}
}

func TestEncrypt_RandomSourceFailureBeforeIO(t *testing.T) {
	dir := t.TempDir()
	src := writePackage(t, dir, "in.ofd", samplePackage())

	enc, err := NewEncryptor(src, filepath.Join(dir, "out.ofd"))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)

	before := treeFiles(t, enc.Workspace())
	enc.AddRecipient(testPassword("password:alice", "pw")).
		SetRandom(bytes.NewReader([]byte{1, 2, 3}))

	if _, err := enc.Encrypt(); !errors.Is(err, fault.ErrCipherFailure) {
		t.Fatalf("Expected ErrCipherFailure, got %v", err)
	}
	if diff := cmp.Diff(before, treeFiles(t, enc.Workspace())); diff != "" {
		t.Errorf("Workspace modified by failed key generation (-before +after):\n%s", diff)
	}
}

func TestEncrypt_SetRandomOnlyDrivesSessionKey(t *testing.T) {
	dir := t.TempDir()
	src := writePackage(t, dir, "in.ofd", samplePackage())
	alice := testPassword("password:alice", "pw")

	var keys [][]byte
	var wraps [][]byte
	for _, name := range []string{"a.ofd", "b.ofd"} {
		enc, err := NewEncryptor(src, filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("NewEncryptor failed: %v", err)
		}
		enc.AddRecipient(alice).SetRandom(bytes.NewReader(bytes.Repeat([]byte{7}, 64)))
		result, err := enc.Encrypt()
		closeOrFail(t, enc)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}

		fek, iv, err := alice.Unwrap(result.Wraps[0].Wrapped)
		if err != nil {
			t.Fatalf("Unwrap failed: %v", err)
		}
		keys = append(keys, append(fek, iv...))
		wraps = append(wraps, result.Wraps[0].Wrapped)
	}

	if !bytes.Equal(keys[0], keys[1]) {
		t.Error("The same random source should yield the same session key")
	}
	if bytes.Equal(wraps[0], wraps[1]) {
		t.Error("Wraps draw from the recipient's own source and should differ")
	}
}

func TestEncrypt_SecondCallDoesNotDoubleEncrypt(t *testing.T) {
	dir := t.TempDir()
	src := writePackage(t, dir, "in.ofd", samplePackage())
	out := filepath.Join(dir, "out.ofd")

	enc, err := NewEncryptor(src, out)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)
	enc.AddRecipient(testPassword("password:alice", "pw"))

	first, err := enc.Encrypt()
	if err != nil {
		t.Fatalf("First Encrypt failed: %v", err)
	}
	second, err := enc.Encrypt()
	if err != nil {
		t.Fatalf("Second Encrypt failed: %v", err)
	}

	if len(first.Entries) != len(samplePackage()) {
		t.Errorf("First session should encrypt every file, got %d", len(first.Entries))
	}
	if len(second.Entries) != 0 {
		t.Errorf("Second session should have nothing to do, got %+v", second.Entries)
	}
	if first.SessionID == second.SessionID {
		t.Error("Each Encrypt call is its own session")
	}
	for name := range readPackage(t, out) {
		if strings.HasSuffix(name, ".enc.enc") {
			t.Errorf("Double-encrypted entry %s", name)
		}
	}
}

func TestEncrypt_FailureRemovesPartialCiphertext(t *testing.T) {
	dir := t.TempDir()
	src := writePackage(t, dir, "in.ofd", samplePackage())

	enc, err := NewEncryptor(src, filepath.Join(dir, "out.ofd"))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)

	p := container.Resolve(enc.Workspace(), "/OFD.xml")
	bad := &crypto.KeyMaterial{FEK: []byte("short"), IV: make([]byte, 16)}

	err = enc.encryptFile(p, bad)
	if !errors.Is(err, fault.ErrCipherFailure) {
		t.Fatalf("Expected ErrCipherFailure, got %v", err)
	}
	if _, err := os.Stat(p.Encrypted().Abs); !os.IsNotExist(err) {
		t.Error("Partial ciphertext should be removed")
	}
	if _, err := os.Stat(p.Abs); err != nil {
		t.Errorf("Plaintext should be kept after a failure: %v", err)
	}
	if enc.engine.State() == crypto.StateActive {
		t.Error("Engine should be reset after a failure")
	}
}

func TestEncrypt_ExistingCiphertextAborts(t *testing.T) {
	dir := t.TempDir()
	files := samplePackage()
	files["OFD.xml.enc"] = []byte("not ours")
	src := writePackage(t, dir, "in.ofd", files)
	out := filepath.Join(dir, "out.ofd")

	enc, err := NewEncryptor(src, out)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)
	enc.AddRecipient(testPassword("password:alice", "pw")).
		SetFilter(container.Exclude("/OFD.xml.enc"))

	if _, err := enc.Encrypt(); !errors.Is(err, fault.ErrIOFailure) {
		t.Fatalf("Expected ErrIOFailure, got %v", err)
	}

	ws := treeFiles(t, enc.Workspace())
	if !bytes.Equal(ws["OFD.xml.enc"], []byte("not ours")) {
		t.Error("Pre-existing file must not be overwritten")
	}
	if !bytes.Equal(ws["OFD.xml"], files["OFD.xml"]) {
		t.Error("Plaintext must be kept when its ciphertext cannot be created")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("No output should be written after a failed session")
	}
}

func TestEncrypt_FailedSessionIsUndone(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	defer store.Close()
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	files := map[string][]byte{
		"A.xml":     []byte("<ofd:A/>"),
		"B.xml":     []byte("<ofd:B/>"),
		"B.xml.enc": []byte("not ours"),
	}
	src := writePackage(t, dir, "in.ofd", files)
	out := filepath.Join(dir, "out.ofd")
	alice := testPassword("password:alice", "pw")

	enc, err := NewEncryptor(src, out, WithStateStore(store))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)
	enc.AddRecipient(alice).SetFilter(container.Exclude("/B.xml.enc"))

	// /A.xml is encrypted first, then /B.xml cannot create its ciphertext.
	if _, err := enc.Encrypt(); !errors.Is(err, fault.ErrIOFailure) {
		t.Fatalf("Expected ErrIOFailure, got %v", err)
	}
	if diff := cmp.Diff(files, treeFiles(t, enc.Workspace())); diff != "" {
		t.Errorf("Workspace not restored after a failed session (-want +got):\n%s", diff)
	}
	abs, _ := filepath.Abs(out)
	if marked, _ := store.DonePaths(abs); len(marked) != 0 {
		t.Errorf("Failed session left done markers: %v", marked)
	}
	if manifests, _ := store.ListManifests(); len(manifests) != 0 {
		t.Errorf("Failed session left %d manifests", len(manifests))
	}

	enc.SetFilter(container.Exclude("/B.xml.enc", "/B.xml"))
	result, err := enc.Encrypt()
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	want := []container.Entry{{Plain: "/A.xml", Encrypted: "/A.xml.enc"}}
	if diff := cmp.Diff(want, result.Entries); diff != "" {
		t.Errorf("Retry ledger mismatch (-want +got):\n%s", diff)
	}

	packed := readPackage(t, out)
	if _, ok := packed["A.xml"]; ok {
		t.Error("/A.xml should be encrypted by the retry")
	}

	restored := filepath.Join(dir, "restored.ofd")
	dec, err := NewManifestDecryptor(out, restored, result.Manifest(), alice)
	if err != nil {
		t.Fatalf("NewManifestDecryptor failed: %v", err)
	}
	defer closeOrFail(t, dec)
	wrap, ok := recipient.Find(result.Wraps, alice.ID())
	if !ok {
		t.Fatal("No wrap for alice")
	}
	if _, err := dec.Decrypt(wrap); err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if diff := cmp.Diff(files, readPackage(t, restored)); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncrypt_PackFailureIsUndone(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	defer store.Close()
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	files := samplePackage()
	src := writePackage(t, dir, "in.ofd", files)
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(blocker, "out.ofd")

	enc, err := NewEncryptor(src, out, WithStateStore(store))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)
	enc.AddRecipient(testPassword("password:alice", "pw"))

	if _, err := enc.Encrypt(); err == nil {
		t.Fatal("Encrypt should fail when the output cannot be written")
	}
	if diff := cmp.Diff(files, treeFiles(t, enc.Workspace())); diff != "" {
		t.Errorf("Workspace not restored (-want +got):\n%s", diff)
	}
	abs, _ := filepath.Abs(out)
	if marked, _ := store.DonePaths(abs); len(marked) != 0 {
		t.Errorf("Failed session left done markers: %v", marked)
	}
	if manifests, _ := store.ListManifests(); len(manifests) != 0 {
		t.Errorf("Failed session left %d manifests", len(manifests))
	}
}

func TestPass_RollbackRestoresRemovedPlaintext(t *testing.T) {
	dir := t.TempDir()
	files := samplePackage()
	src := writePackage(t, dir, "in.ofd", files)

	enc, err := NewEncryptor(src, filepath.Join(dir, "out.ofd"))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)

	km, err := crypto.GenerateKeyMaterial(nil, crypto.SM4.BlockSize())
	if err != nil {
		t.Fatalf("GenerateKeyMaterial failed: %v", err)
	}
	defer km.Destroy()

	paths, err := container.List(enc.Workspace(), container.All)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	tx := &pass{engine: enc.engine, km: km}
	for _, p := range paths {
		if err := enc.encryptFile(p, km); err != nil {
			t.Fatalf("encryptFile %s failed: %v", p.Name, err)
		}
		tx.written = append(tx.written, p)
	}
	if err := tx.removePlaintexts(); err != nil {
		t.Fatalf("removePlaintexts failed: %v", err)
	}
	if _, err := os.Stat(paths[0].Abs); !os.IsNotExist(err) {
		t.Fatal("Plaintext should be removed before the rollback")
	}

	if err := tx.rollback(); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if diff := cmp.Diff(files, treeFiles(t, enc.Workspace())); diff != "" {
		t.Errorf("Rollback mismatch (-want +got):\n%s", diff)
	}
}

func TestEncrypt_MultipleRecipients(t *testing.T) {
	dir := t.TempDir()
	src := writePackage(t, dir, "in.ofd", samplePackage())

	enc, err := NewEncryptor(src, filepath.Join(dir, "out.ofd"), WithAlgorithm(crypto.AES128))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)

	alice := testPassword("password:alice", "a")
	bob := testPassword("password:bob", "b")
	identity, err := recipient.GenerateAgeIdentity()
	if err != nil {
		t.Fatalf("GenerateAgeIdentity failed: %v", err)
	}
	enc.AddRecipient(alice).AddRecipient(bob).AddRecipient(identity.Recipient())

	result, err := enc.Encrypt()
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(result.Wraps) != 3 {
		t.Fatalf("Expected 3 wraps, got %d", len(result.Wraps))
	}

	var first []byte
	for i, u := range []recipient.Unwrapper{alice, bob, identity} {
		fek, iv, err := u.Unwrap(result.Wraps[i].Wrapped)
		if err != nil {
			t.Fatalf("Recipient %d cannot unwrap: %v", i, err)
		}
		if len(fek) != 16 || len(iv) != 16 {
			t.Errorf("Recipient %d: key lengths %d/%d", i, len(fek), len(iv))
		}
		if first == nil {
			first = append(fek, iv...)
		} else if !bytes.Equal(first, append(fek, iv...)) {
			t.Errorf("Recipient %d unwrapped a different session key", i)
		}
	}

	if _, _, err := bob.Unwrap(result.Wraps[0].Wrapped); err == nil {
		t.Error("bob must not unwrap alice's wrap")
	}
}

func TestEncrypt_StateStore(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	defer store.Close()
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	src := writePackage(t, dir, "in.ofd", samplePackage())
	out := filepath.Join(dir, "out.ofd")
	alice := testPassword("password:alice", "pw")

	enc, err := NewEncryptor(src, out, WithStateStore(store))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	enc.AddRecipient(alice).SetFilter(container.Match("/Doc_0/*.xml"))
	result, err := enc.Encrypt()
	closeOrFail(t, enc)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	m, err := store.GetManifest(result.SessionID)
	if err != nil {
		t.Fatalf("Manifest not stored: %v", err)
	}
	if diff := cmp.Diff(result.Entries, m.Entries); diff != "" {
		t.Errorf("Stored ledger mismatch (-want +got):\n%s", diff)
	}
	if m.Algorithm != crypto.SM4.String() {
		t.Errorf("Stored algorithm %q", m.Algorithm)
	}
	abs, _ := filepath.Abs(out)
	if m.Source != src || m.Scope != abs {
		t.Errorf("Stored source=%q scope=%q, want %q %q", m.Source, m.Scope, src, abs)
	}
	if diff := cmp.Diff(m, result.Manifest(), cmpopts.IgnoreFields(storage.Manifest{}, "Created")); diff != "" {
		t.Errorf("Result manifest differs from the stored one (-stored +result):\n%s", diff)
	}

	// A later run over the encrypted output skips what is already done,
	// including the ciphertext, and picks up newly selected files.
	enc2, err := NewEncryptor(out, out, WithStateStore(store))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc2)
	enc2.AddRecipient(alice)
	again, err := enc2.Encrypt()
	if err != nil {
		t.Fatalf("Second Encrypt failed: %v", err)
	}

	var plains []string
	for _, e := range again.Entries {
		plains = append(plains, e.Plain)
	}
	want := []string{"/Doc_0/Pages/Page_0/Content.xml", "/Doc_0/Res/image.png", "/OFD.xml"}
	if diff := cmp.Diff(want, plains); diff != "" {
		t.Errorf("Resumed session mismatch (-want +got):\n%s", diff)
	}

	manifests, err := store.ListManifests()
	if err != nil || len(manifests) != 2 {
		t.Errorf("Expected 2 manifests, got %d (%v)", len(manifests), err)
	}
}

func TestEncrypt_StaleDoneMarkerDoesNotSkipPlaintext(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	defer store.Close()
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	src := writePackage(t, dir, "in.ofd", samplePackage())
	out := filepath.Join(dir, "out.ofd")
	abs, _ := filepath.Abs(out)
	if err := store.MarkDone(abs, "/OFD.xml", "old-session"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	enc, err := NewEncryptor(src, out, WithStateStore(store))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	defer closeOrFail(t, enc)
	enc.AddRecipient(testPassword("password:alice", "pw"))

	result, err := enc.Encrypt()
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, ok := readPackage(t, out)["OFD.xml"]; ok {
		t.Error("A stale done marker must not leave plaintext in the output")
	}
	if len(result.Entries) != len(samplePackage()) {
		t.Errorf("Expected every file encrypted, got %d", len(result.Entries))
	}
}

func TestEncrypt_Closed(t *testing.T) {
	dir := t.TempDir()
	src := writePackage(t, dir, "in.ofd", samplePackage())

	enc, err := NewEncryptor(src, filepath.Join(dir, "out.ofd"))
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	ws := enc.Workspace()

	if err := enc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
	if _, err := os.Stat(ws); !os.IsNotExist(err) {
		t.Error("Workspace should be removed")
	}

	enc.AddRecipient(testPassword("password:alice", "pw"))
	if _, err := enc.Encrypt(); !errors.Is(err, fault.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestNewEncryptor_Errors(t *testing.T) {
	dir := t.TempDir()
	valid := writePackage(t, dir, "ok.ofd", samplePackage())
	traversal := writePackage(t, dir, "evil.ofd", map[string][]byte{
		"OFD.xml":           []byte("ok"),
		"../../escaped.xml": []byte("pwned"),
	})
	big := writePackage(t, dir, "big.ofd", map[string][]byte{
		"OFD.xml": bytes.Repeat([]byte("A"), 4096),
	})

	tests := []struct {
		name string
		src  string
		out  string
		opts []Option
		want error
	}{
		{"missing source", filepath.Join(dir, "missing.ofd"), "out.ofd", nil, fault.ErrInvalidArgument},
		{"empty source", "", "out.ofd", nil, fault.ErrInvalidArgument},
		{"empty output", valid, "", nil, fault.ErrInvalidArgument},
		{"source is a directory", dir, "out.ofd", nil, fault.ErrInvalidArgument},
		{"path traversal", traversal, "out.ofd", nil, fault.ErrPathTraversal},
		{"over budget", big, "out.ofd", []Option{WithMaxExtractSize(1024)}, fault.ErrCapacityExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			opts := append([]Option{WithTempDir(tmp)}, tt.opts...)

			enc, err := NewEncryptor(tt.src, tt.out, opts...)
			if !errors.Is(err, tt.want) {
				if enc != nil {
					enc.Close()
				}
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}

			// A failed construction leaves no workspace behind.
			left, _ := os.ReadDir(tmp)
			if len(left) != 0 {
				t.Errorf("Workspace leaked: %v", left)
			}
			// ../../ from inside the workspace lands next to tmp.
			if _, err := os.Stat(filepath.Join(filepath.Dir(tmp), "escaped.xml")); !os.IsNotExist(err) {
				t.Error("Traversal entry was written outside the workspace")
			}
		})
	}
}
