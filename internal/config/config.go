// Package config reads the core's configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/tmaritz/claimkeeper/internal/crypto"
	"github.com/tmaritz/claimkeeper/internal/errs"
)

// Defaults mirror a single-node deployment with plaintext snapshots.
const (
	defaultPrivateRoot  = "data/supporting-docs"
	defaultSnapshotPath = "data/claimkeeper-state.json"
)

// Config is the configuration surface consumed by the storage core.
type Config struct {
	// EncryptionKey is the 256-bit key used for documents and, when
	// EncryptSnapshot is set, the snapshot file.
	EncryptionKey []byte
	// PrivateRoot is the directory holding encrypted uploads. It must
	// never be web-servable.
	PrivateRoot string
	// SnapshotPath is the snapshot file location for the file backend.
	SnapshotPath string
	// PersistEnabled disables all snapshot I/O when false.
	PersistEnabled bool
	// EncryptSnapshot wraps the snapshot file in the document cipher.
	EncryptSnapshot bool
	// PostgresDSN, when non-empty, selects the Postgres snapshot backend
	// instead of the file.
	PostgresDSN string
}

// Load builds a Config from the environment. A .env file in the working
// directory is honored when present. The key is either
// CLAIMKEEPER_ENC_KEY (base64 of exactly 32 bytes) or derived from
// CLAIMKEEPER_PASSPHRASE and CLAIMKEEPER_KEY_SALT; one of the two forms
// is required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PrivateRoot:     envOr("CLAIMKEEPER_PRIVATE_ROOT", defaultPrivateRoot),
		SnapshotPath:    envOr("CLAIMKEEPER_SNAPSHOT_PATH", defaultSnapshotPath),
		PersistEnabled:  envBool("CLAIMKEEPER_PERSIST", true),
		EncryptSnapshot: envBool("CLAIMKEEPER_ENCRYPT_SNAPSHOT", false),
		PostgresDSN:     os.Getenv("CLAIMKEEPER_POSTGRES_DSN"),
	}

	key, err := loadKey()
	if err != nil {
		return nil, err
	}
	cfg.EncryptionKey = key
	return cfg, nil
}

func loadKey() ([]byte, error) {
	if b64 := os.Getenv("CLAIMKEEPER_ENC_KEY"); b64 != "" {
		key, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("config: CLAIMKEEPER_ENC_KEY is not valid base64: %w", err)
		}
		if len(key) != crypto.KeySize {
			return nil, fmt.Errorf("config: CLAIMKEEPER_ENC_KEY: %w (got %d)", errs.ErrKeySize, len(key))
		}
		return key, nil
	}

	passphrase := os.Getenv("CLAIMKEEPER_PASSPHRASE")
	saltB64 := os.Getenv("CLAIMKEEPER_KEY_SALT")
	if passphrase == "" {
		return nil, fmt.Errorf("config: missing CLAIMKEEPER_ENC_KEY (or CLAIMKEEPER_PASSPHRASE)")
	}
	if saltB64 == "" {
		return nil, fmt.Errorf("config: CLAIMKEEPER_PASSPHRASE requires CLAIMKEEPER_KEY_SALT")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("config: CLAIMKEEPER_KEY_SALT is not valid base64: %w", err)
	}
	return crypto.DeriveKey([]byte(passphrase), salt), nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
