// Package store is the in-memory entity store for the claims-approval
// workflow. Every successful mutation is followed by a full-state snapshot
// save through the configured persister, so state survives restarts.
//
// The store trusts its caller: role verification and input validation
// belong to the layer above. Read misses are reported as absent values,
// never as errors.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tmaritz/claimkeeper/internal/errs"
	"github.com/tmaritz/claimkeeper/internal/ident"
	"github.com/tmaritz/claimkeeper/internal/model"
	"github.com/tmaritz/claimkeeper/internal/snapshot"
	"github.com/tmaritz/claimkeeper/internal/vault"
)

// Store owns all entity maps. A single mutex guards them; in particular a
// decision's status update and approval append are visible together.
type Store struct {
	vault     *vault.Vault
	persister snapshot.Persister
	log       *zap.Logger

	ids ident.Allocator

	mu               sync.RWMutex
	usersByName      map[string]*model.User
	lecturersByUser  map[int64]*model.Lecturer
	lecturersByID    map[int64]*model.Lecturer
	claims           map[int64]*model.Claim
	approvalsByClaim map[int64][]model.Approval
	documents        map[int64]*model.SupportingDocument
	docIDsByClaim    map[int64][]int64
}

// New returns an empty store. Call Load before serving traffic and Close
// on shutdown for a final save.
func New(v *vault.Vault, p snapshot.Persister, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		vault:            v,
		persister:        p,
		log:              log,
		usersByName:      make(map[string]*model.User),
		lecturersByUser:  make(map[int64]*model.Lecturer),
		lecturersByID:    make(map[int64]*model.Lecturer),
		claims:           make(map[int64]*model.Claim),
		approvalsByClaim: make(map[int64][]model.Approval),
		documents:        make(map[int64]*model.SupportingDocument),
		docIDsByClaim:    make(map[int64][]int64),
	}
}

// GetOrCreateUser returns the user with the given username, creating it if
// absent. The role is updated to the supplied value on every call; the
// trimmed username is the unique, case-sensitive key.
func (s *Store) GetOrCreateUser(ctx context.Context, username, role string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return model.User{}, errors.New("validation: empty username")
	}

	s.mu.Lock()
	u, ok := s.usersByName[username]
	if !ok {
		u = &model.User{ID: s.ids.Next(ident.KindUser), Username: username}
		s.usersByName[username] = u
	}
	u.Role = role
	out := *u
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return model.User{}, err
	}
	return out, nil
}

// GetOrCreateLecturer returns the lecturer profile owned by userID,
// creating it on first call. Subsequent calls return the same lecturer
// unchanged; the 1:1 link to the user is permanent.
func (s *Store) GetOrCreateLecturer(ctx context.Context, userID int64, name, email string) (model.Lecturer, error) {
	s.mu.Lock()
	lec, ok := s.lecturersByUser[userID]
	if !ok {
		lec = &model.Lecturer{
			ID:     s.ids.Next(ident.KindLecturer),
			UserID: userID,
			Name:   name,
			Email:  email,
		}
		s.lecturersByUser[userID] = lec
		s.lecturersByID[lec.ID] = lec
	}
	out := *lec
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return model.Lecturer{}, err
	}
	return out, nil
}

// LecturerByID looks up a lecturer by its own identity.
func (s *Store) LecturerByID(lecturerID int64) (model.Lecturer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lec, ok := s.lecturersByID[lecturerID]
	if !ok {
		return model.Lecturer{}, false
	}
	return *lec, true
}

// CreateClaim records a new pending claim and returns its identity. Hours
// and rate are stored rounded to two decimals and the total is the rounded
// product. The lecturer id is not checked for existence.
func (s *Store) CreateClaim(ctx context.Context, lecturerID int64, hours, rate float64, notes string) (int64, error) {
	hours = model.Round2(hours)
	rate = model.Round2(rate)
	claim := &model.Claim{
		ID:          s.ids.Next(ident.KindClaim),
		LecturerID:  lecturerID,
		HoursWorked: hours,
		HourlyRate:  rate,
		TotalAmount: model.Round2(hours * rate),
		Status:      model.StatusPending,
		SubmittedAt: time.Now().UTC(),
		Notes:       notes,
	}

	s.mu.Lock()
	s.claims[claim.ID] = claim
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return 0, err
	}
	return claim.ID, nil
}

// AllClaims returns every claim, newest submission first.
func (s *Store) AllClaims() []model.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, *c)
	}
	sortClaimsNewestFirst(out)
	return out
}

// ClaimsForLecturer returns the lecturer's claims, newest submission first.
func (s *Store) ClaimsForLecturer(lecturerID int64) []model.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Claim, 0)
	for _, c := range s.claims {
		if c.LecturerID == lecturerID {
			out = append(out, *c)
		}
	}
	sortClaimsNewestFirst(out)
	return out
}

// Claim looks up a single claim.
func (s *Store) Claim(claimID int64) (model.Claim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[claimID]
	if !ok {
		return model.Claim{}, false
	}
	return *c, true
}

// RecordDecision sets the claim's status to the decision and appends an
// approval record. Unknown claim ids are a silent no-op. The status update
// and the approval append happen under one critical section.
func (s *Store) RecordDecision(ctx context.Context, claimID int64, decision, approverRole, comments string) error {
	s.mu.Lock()
	claim, ok := s.claims[claimID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	claim.Status = decision
	approval := model.Approval{
		ID:         s.ids.Next(ident.KindApproval),
		ClaimID:    claimID,
		ApprovedBy: approverRole,
		Decision:   decision,
		DecisionAt: time.Now().UTC(),
		Comments:   comments,
	}
	s.approvalsByClaim[claimID] = append(s.approvalsByClaim[claimID], approval)
	s.mu.Unlock()

	return s.persist(ctx)
}

// LatestApproval returns the approval with the maximum decision timestamp
// for the claim; ties go to the most recently appended record.
func (s *Store) LatestApproval(claimID int64) (model.Approval, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.approvalsByClaim[claimID]
	if len(history) == 0 {
		return model.Approval{}, false
	}
	latest := history[0]
	for _, a := range history[1:] {
		if a.DecisionAt.After(latest.DecisionAt) ||
			(a.DecisionAt.Equal(latest.DecisionAt) && a.ID > latest.ID) {
			latest = a
		}
	}
	return latest, true
}

// DeleteClaim removes the claim, its approval history, its document
// records and their backing encrypted files. Missing backing files are
// tolerated; no child may survive a successful delete.
func (s *Store) DeleteClaim(ctx context.Context, claimID int64) error {
	s.mu.Lock()
	delete(s.claims, claimID)
	delete(s.approvalsByClaim, claimID)

	var paths []string
	for _, docID := range s.docIDsByClaim[claimID] {
		if doc, ok := s.documents[docID]; ok {
			paths = append(paths, doc.Path)
			delete(s.documents, docID)
		}
	}
	delete(s.docIDsByClaim, claimID)
	s.mu.Unlock()

	for _, p := range paths {
		s.vault.Remove(p)
	}
	return s.persist(ctx)
}

// UploadDocument sanitizes the file name, encrypts the content through the
// vault and links the resulting document record to the claim.
func (s *Store) UploadDocument(ctx context.Context, claimID, lecturerID int64, fileName, contentType string, content io.Reader) (int64, error) {
	docID := s.ids.Next(ident.KindDocument)
	safeName := vault.SanitizeFileName(fileName)

	path, ivB64, size, err := s.vault.EncryptAndStore(claimID, docID, safeName, content)
	if err != nil {
		return 0, err
	}

	doc := &model.SupportingDocument{
		ID:          docID,
		ClaimID:     claimID,
		FileName:    safeName,
		ContentType: contentType,
		UploadedAt:  time.Now().UTC(),
		UploadedBy:  lecturerID,
		Path:        path,
		IVBase64:    ivB64,
		SizeBytes:   size,
	}

	s.mu.Lock()
	s.documents[docID] = doc
	s.docIDsByClaim[claimID] = append(s.docIDsByClaim[claimID], docID)
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return 0, err
	}
	return docID, nil
}

// DocumentsForClaim returns the claim's documents ordered by identity.
func (s *Store) DocumentsForClaim(claimID int64) []model.SupportingDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.docIDsByClaim[claimID]
	out := make([]model.SupportingDocument, 0, len(ids))
	for _, id := range ids {
		if doc, ok := s.documents[id]; ok {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Document looks up a single document record.
func (s *Store) Document(documentID int64) (model.SupportingDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return model.SupportingDocument{}, false
	}
	return *doc, true
}

// OpenDocument decrypts and returns the plaintext of a stored document.
// Unknown ids and missing backing files surface as errs.ErrNotFound.
func (s *Store) OpenDocument(documentID int64) ([]byte, error) {
	doc, ok := s.Document(documentID)
	if !ok {
		return nil, fmt.Errorf("document %d: %w", documentID, errs.ErrNotFound)
	}
	return s.vault.Decrypt(doc)
}

func sortClaimsNewestFirst(claims []model.Claim) {
	sort.Slice(claims, func(i, j int) bool {
		if !claims[i].SubmittedAt.Equal(claims[j].SubmittedAt) {
			return claims[i].SubmittedAt.After(claims[j].SubmittedAt)
		}
		return claims[i].ID > claims[j].ID
	})
}
