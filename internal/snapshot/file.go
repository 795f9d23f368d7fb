package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/tmaritz/claimkeeper/internal/crypto"
	"github.com/tmaritz/claimkeeper/internal/errs"
)

// File persists snapshots as JSON in a single file. When encryption is
// enabled the file holds a fresh random IV in its first 16 bytes followed
// by the AES-256-CBC ciphertext of the JSON.
type File struct {
	path    string
	key     []byte
	encrypt bool
	log     *zap.Logger

	// mu serializes writers so a torn file can only result from a crash,
	// never from interleaved saves.
	mu sync.Mutex
}

// NewFile creates the snapshot's parent directory if needed and returns a
// file-backed persister. A key of exactly 32 bytes is required when
// encrypt is set.
func NewFile(path string, key []byte, encrypt bool, log *zap.Logger) (*File, error) {
	if encrypt && len(key) != crypto.KeySize {
		return nil, fmt.Errorf("snapshot: %w (got %d)", errs.ErrKeySize, len(key))
	}
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("snapshot: create data dir: %w", err)
		}
	}
	return &File{path: path, key: key, encrypt: encrypt, log: log}, nil
}

// Save serializes the state and writes it to the snapshot file.
func (f *File) Save(_ context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if f.encrypt {
		iv, ciphertext, err := crypto.Encrypt(f.key, data)
		if err != nil {
			return fmt.Errorf("snapshot: encrypt: %w", err)
		}
		data = append(iv, ciphertext...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", f.path, err)
	}
	return nil
}

// Load reads the snapshot file back into a State. A missing file, a file
// too short to hold an IV, or undecodable content all yield (nil, nil).
func (f *File) Load(_ context.Context) (*State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: read %s: %w", f.path, err)
	}

	if f.encrypt {
		if len(data) < crypto.IVSize {
			f.log.Warn("snapshot file too short to contain an IV, starting empty",
				zap.String("path", f.path), zap.Int("size", len(data)))
			return nil, nil
		}
		plaintext, err := crypto.Decrypt(f.key, data[:crypto.IVSize], data[crypto.IVSize:])
		if err != nil {
			f.log.Warn("snapshot file could not be decrypted, starting empty",
				zap.String("path", f.path), zap.Error(err))
			return nil, nil
		}
		data = plaintext
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		f.log.Warn("snapshot file could not be decoded, starting empty",
			zap.String("path", f.path), zap.Error(err))
		return nil, nil
	}
	return &st, nil
}
