// Package vault encrypts uploaded documents before they touch disk and
// decrypts them on read. Plaintext is never persisted; files live under a
// private root that must not be web-servable.
package vault

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/tmaritz/claimkeeper/internal/crypto"
	"github.com/tmaritz/claimkeeper/internal/errs"
	"github.com/tmaritz/claimkeeper/internal/model"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)

// SanitizeFileName replaces every run of characters outside
// [a-zA-Z0-9._-] with a single underscore, so user-supplied names can
// never smuggle separators or traversal sequences into a path.
func SanitizeFileName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Vault holds the process-lifetime document key and the private storage root.
type Vault struct {
	key  []byte
	root string
	log  *zap.Logger
}

// New validates the key length, creates the private root if absent and
// returns a ready vault.
func New(key []byte, root string, log *zap.Logger) (*Vault, error) {
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("vault: %w (got %d)", errs.ErrKeySize, len(key))
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("vault: create private root: %w", err)
	}
	return &Vault{key: key, root: root, log: log}, nil
}

// documentPath derives the on-disk location for an encrypted document:
// <root>/<claimID>/<docID>-<safeName>.enc.
func (v *Vault) documentPath(claimID, docID int64, safeName string) (dir, path string) {
	dir = filepath.Join(v.root, strconv.FormatInt(claimID, 10))
	path = filepath.Join(dir, fmt.Sprintf("%d-%s.enc", docID, safeName))
	return dir, path
}

// EncryptAndStore reads the full upload, encrypts it under a fresh random
// IV and writes the ciphertext beneath the private root. It returns the
// file path, the IV encoded as base64 and the ciphertext length.
func (v *Vault) EncryptAndStore(claimID, docID int64, safeName string, r io.Reader) (path, ivBase64 string, size int64, err error) {
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", "", 0, fmt.Errorf("vault: read upload: %w", err)
	}
	iv, ciphertext, err := crypto.Encrypt(v.key, plaintext)
	if err != nil {
		return "", "", 0, fmt.Errorf("vault: encrypt: %w", err)
	}

	dir, path := v.documentPath(claimID, docID, safeName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", 0, fmt.Errorf("vault: create claim dir: %w", err)
	}
	if err := os.WriteFile(path, ciphertext, 0o600); err != nil {
		return "", "", 0, fmt.Errorf("vault: write ciphertext: %w", err)
	}
	return path, base64.StdEncoding.EncodeToString(iv), int64(len(ciphertext)), nil
}

// Decrypt returns the exact original plaintext of a stored document.
// A missing backing file is reported as errs.ErrNotFound.
func (v *Vault) Decrypt(doc model.SupportingDocument) ([]byte, error) {
	ciphertext, err := os.ReadFile(doc.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("vault: encrypted file %s: %w", doc.Path, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("vault: read ciphertext: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(doc.IVBase64)
	if err != nil {
		return nil, fmt.Errorf("vault: decode iv: %w", err)
	}
	plaintext, err := crypto.Decrypt(v.key, iv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("vault: decrypt: %w", err)
	}
	return plaintext, nil
}

// Remove deletes the backing file for a document. A missing file is
// tolerated; other failures are logged and swallowed so cascading deletes
// never abort halfway.
func (v *Vault) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		v.log.Warn("failed to delete encrypted file", zap.String("path", path), zap.Error(err))
	}
}
