// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested entity or its backing file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrKeySize indicates the encryption key does not decode to exactly 32 bytes.
	ErrKeySize = errors.New("encryption key must be exactly 32 bytes")
)
