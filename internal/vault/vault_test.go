package vault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/tmaritz/claimkeeper/internal/crypto"
	"github.com/tmaritz/claimkeeper/internal/errs"
	"github.com/tmaritz/claimkeeper/internal/model"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	key, err := crypto.RandBytes(crypto.KeySize)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	v, err := New(key, filepath.Join(t.TempDir(), "supporting-docs"), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestNew_RejectsBadKey(t *testing.T) {
	t.Parallel()
	_, err := New([]byte("short"), t.TempDir(), nil)
	if !errors.Is(err, errs.ErrKeySize) {
		t.Fatalf("err=%v, want ErrKeySize", err)
	}
	_, err = New(nil, t.TempDir(), nil)
	if !errors.Is(err, errs.ErrKeySize) {
		t.Fatalf("err=%v, want ErrKeySize", err)
	}
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, want string }{
		{"timesheet.pdf", "timesheet.pdf"},
		{"my report (final).docx", "my_report_final_.docx"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{`a\b/c`, "a_b_c"},
		{"héllo wörld.txt", "h_llo_w_rld.txt"},
		{"UPPER-case_ok.PDF", "UPPER-case_ok.PDF"},
	}
	for _, c := range cases {
		if got := SanitizeFileName(c.in); got != c.want {
			t.Fatalf("SanitizeFileName(%q)=%q, want %q", c.in, got, c.want)
		}
	}
}

func TestEncryptAndStore_DecryptRoundTrip(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	for _, plaintext := range [][]byte{
		nil,
		[]byte("small file"),
		bytes.Repeat([]byte("chunk"), 4096),
	} {
		path, ivB64, size, err := v.EncryptAndStore(7, 1, "f.bin", bytes.NewReader(plaintext))
		if err != nil {
			t.Fatalf("EncryptAndStore: %v", err)
		}
		if size <= int64(len(plaintext)) {
			t.Fatalf("stored size %d must exceed plaintext size %d (padding)", size, len(plaintext))
		}
		fi, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat ciphertext: %v", err)
		}
		if fi.Size() != size {
			t.Fatalf("on-disk size %d != reported size %d", fi.Size(), size)
		}

		doc := model.SupportingDocument{Path: path, IVBase64: ivB64}
		out, err := v.Decrypt(doc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(out, plaintext) {
			t.Fatalf("round trip mismatch for %d-byte input", len(plaintext))
		}
	}
}

func TestEncryptAndStore_PlaintextNeverOnDisk(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)
	secret := []byte("strictly confidential payroll data")

	path, _, _, err := v.EncryptAndStore(1, 1, "payroll.txt", bytes.NewReader(secret))
	if err != nil {
		t.Fatalf("EncryptAndStore: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ciphertext: %v", err)
	}
	if bytes.Contains(raw, secret) {
		t.Fatalf("ciphertext contains plaintext")
	}
}

func TestEncryptAndStore_DistinctIVAndCiphertext(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)
	plaintext := []byte("identical twice")

	p1, iv1, _, err := v.EncryptAndStore(3, 1, "a.txt", bytes.NewReader(plaintext))
	if err != nil {
		t.Fatalf("EncryptAndStore: %v", err)
	}
	p2, iv2, _, err := v.EncryptAndStore(3, 2, "b.txt", bytes.NewReader(plaintext))
	if err != nil {
		t.Fatalf("EncryptAndStore: %v", err)
	}
	if iv1 == iv2 {
		t.Fatalf("IVs must differ per file")
	}
	c1, _ := os.ReadFile(p1)
	c2, _ := os.ReadFile(p2)
	if bytes.Equal(c1, c2) {
		t.Fatalf("identical plaintext must not yield identical ciphertext")
	}
}

func TestDocumentPath_Layout(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)
	path, _, _, err := v.EncryptAndStore(12, 34, "notes.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("EncryptAndStore: %v", err)
	}
	if !strings.HasPrefix(path, v.root) {
		t.Fatalf("path %q escapes private root %q", path, v.root)
	}
	if filepath.Base(path) != "34-notes.pdf.enc" {
		t.Fatalf("file name=%q, want 34-notes.pdf.enc", filepath.Base(path))
	}
	if filepath.Base(filepath.Dir(path)) != "12" {
		t.Fatalf("claim dir=%q, want 12", filepath.Base(filepath.Dir(path)))
	}
}

func TestDecrypt_MissingFileIsNotFound(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)
	doc := model.SupportingDocument{Path: filepath.Join(v.root, "9", "1-gone.enc"), IVBase64: ""}
	_, err := v.Decrypt(doc)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestRemove_ToleratesMissingFile(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)
	v.Remove(filepath.Join(v.root, "nope", "1-x.enc")) // must not panic

	path, _, _, err := v.EncryptAndStore(5, 1, "z.txt", strings.NewReader("z"))
	if err != nil {
		t.Fatalf("EncryptAndStore: %v", err)
	}
	v.Remove(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still present after Remove")
	}
}
