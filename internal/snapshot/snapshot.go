// Package snapshot serializes the full store state to durable storage and
// reconstructs it on startup. Backends implement Persister; the default is
// a single JSON file, optionally encrypted.
package snapshot

import (
	"context"

	"github.com/tmaritz/claimkeeper/internal/model"
)

// Link ties a document to its owning claim in the serialized form.
type Link struct {
	ClaimID    int64 `json:"claimId"`
	DocumentID int64 `json:"documentId"`
}

// State is the self-describing serialization of the entire store: the five
// identity counters, every entity, and the claim→document links. Claims
// carry no nested children; approvals and documents are flattened with
// their owning claim id. Document bytes are never part of a snapshot.
type State struct {
	UserCounter     int64 `json:"userCounter"`
	LecturerCounter int64 `json:"lecturerCounter"`
	ClaimCounter    int64 `json:"claimCounter"`
	ApprovalCounter int64 `json:"approvalCounter"`
	DocumentCounter int64 `json:"documentCounter"`

	Users     []model.User               `json:"users"`
	Lecturers []model.Lecturer           `json:"lecturers"`
	Claims    []model.Claim              `json:"claims"`
	Approvals []model.Approval           `json:"approvals"`
	Documents []model.SupportingDocument `json:"documents"`
	ClaimDocs []Link                     `json:"claimDocumentLinks"`
}

// Persister stores and retrieves full-state snapshots.
type Persister interface {
	// Save durably writes the state. Concurrent saves are serialized by
	// the implementation, never interleaved.
	Save(ctx context.Context, st *State) error

	// Load returns the last saved state, or (nil, nil) when no prior
	// state exists or the stored bytes cannot be decoded. Corruption is
	// tolerated: the caller starts empty instead of refusing to boot.
	Load(ctx context.Context) (*State, error)
}

// Noop satisfies Persister with persistence disabled: saves succeed
// without writing and loads report no prior state.
type Noop struct{}

// Save does nothing.
func (Noop) Save(context.Context, *State) error { return nil }

// Load reports no prior state.
func (Noop) Load(context.Context) (*State, error) { return nil, nil }
