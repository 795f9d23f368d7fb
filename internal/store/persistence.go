package store

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/tmaritz/claimkeeper/internal/ident"
	"github.com/tmaritz/claimkeeper/internal/model"
	"github.com/tmaritz/claimkeeper/internal/snapshot"
)

// Load replaces the store's contents with the last persisted snapshot.
// Call once at startup, before any other operation. When no prior state
// exists the store stays empty.
func (s *Store) Load(ctx context.Context) error {
	st, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids.Restore(ident.KindUser, st.UserCounter)
	s.ids.Restore(ident.KindLecturer, st.LecturerCounter)
	s.ids.Restore(ident.KindClaim, st.ClaimCounter)
	s.ids.Restore(ident.KindApproval, st.ApprovalCounter)
	s.ids.Restore(ident.KindDocument, st.DocumentCounter)

	s.usersByName = make(map[string]*model.User, len(st.Users))
	for i := range st.Users {
		u := st.Users[i]
		s.usersByName[u.Username] = &u
	}

	s.lecturersByUser = make(map[int64]*model.Lecturer, len(st.Lecturers))
	s.lecturersByID = make(map[int64]*model.Lecturer, len(st.Lecturers))
	for i := range st.Lecturers {
		lec := st.Lecturers[i]
		s.lecturersByID[lec.ID] = &lec
		s.lecturersByUser[lec.UserID] = &lec
	}

	s.claims = make(map[int64]*model.Claim, len(st.Claims))
	for i := range st.Claims {
		c := st.Claims[i]
		s.claims[c.ID] = &c
	}

	s.approvalsByClaim = make(map[int64][]model.Approval)
	for _, a := range st.Approvals {
		s.approvalsByClaim[a.ClaimID] = append(s.approvalsByClaim[a.ClaimID], a)
	}

	s.documents = make(map[int64]*model.SupportingDocument, len(st.Documents))
	for i := range st.Documents {
		d := st.Documents[i]
		s.documents[d.ID] = &d
	}

	s.docIDsByClaim = make(map[int64][]int64)
	for _, link := range st.ClaimDocs {
		s.docIDsByClaim[link.ClaimID] = append(s.docIDsByClaim[link.ClaimID], link.DocumentID)
	}

	s.log.Info("state restored from snapshot",
		zap.Int("users", len(st.Users)),
		zap.Int("lecturers", len(st.Lecturers)),
		zap.Int("claims", len(st.Claims)),
		zap.Int("approvals", len(st.Approvals)),
		zap.Int("documents", len(st.Documents)),
	)
	return nil
}

// Close performs a final snapshot save. The process shutdown sequence
// calls this explicitly; there is no implicit save on exit.
func (s *Store) Close(ctx context.Context) error {
	return s.persist(ctx)
}

// persist writes the current full state through the persister. The
// persister serializes concurrent saves.
func (s *Store) persist(ctx context.Context) error {
	return s.persister.Save(ctx, s.snapshotState())
}

// snapshotState assembles a State from the maps under the read lock.
// Slices are emitted in identity order so repeated saves of the same
// state are byte-identical.
func (s *Store) snapshotState() *snapshot.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &snapshot.State{
		UserCounter:     s.ids.Current(ident.KindUser),
		LecturerCounter: s.ids.Current(ident.KindLecturer),
		ClaimCounter:    s.ids.Current(ident.KindClaim),
		ApprovalCounter: s.ids.Current(ident.KindApproval),
		DocumentCounter: s.ids.Current(ident.KindDocument),
		Users:           make([]model.User, 0, len(s.usersByName)),
		Lecturers:       make([]model.Lecturer, 0, len(s.lecturersByID)),
		Claims:          make([]model.Claim, 0, len(s.claims)),
		Approvals:       make([]model.Approval, 0),
		Documents:       make([]model.SupportingDocument, 0, len(s.documents)),
		ClaimDocs:       make([]snapshot.Link, 0),
	}

	for _, u := range s.usersByName {
		st.Users = append(st.Users, *u)
	}
	sort.Slice(st.Users, func(i, j int) bool { return st.Users[i].ID < st.Users[j].ID })

	for _, lec := range s.lecturersByID {
		st.Lecturers = append(st.Lecturers, *lec)
	}
	sort.Slice(st.Lecturers, func(i, j int) bool { return st.Lecturers[i].ID < st.Lecturers[j].ID })

	for _, c := range s.claims {
		st.Claims = append(st.Claims, *c)
	}
	sort.Slice(st.Claims, func(i, j int) bool { return st.Claims[i].ID < st.Claims[j].ID })

	for _, history := range s.approvalsByClaim {
		st.Approvals = append(st.Approvals, history...)
	}
	sort.Slice(st.Approvals, func(i, j int) bool { return st.Approvals[i].ID < st.Approvals[j].ID })

	for _, d := range s.documents {
		st.Documents = append(st.Documents, *d)
	}
	sort.Slice(st.Documents, func(i, j int) bool { return st.Documents[i].ID < st.Documents[j].ID })

	for claimID, docIDs := range s.docIDsByClaim {
		for _, docID := range docIDs {
			st.ClaimDocs = append(st.ClaimDocs, snapshot.Link{ClaimID: claimID, DocumentID: docID})
		}
	}
	sort.Slice(st.ClaimDocs, func(i, j int) bool {
		return st.ClaimDocs[i].DocumentID < st.ClaimDocs[j].DocumentID
	})

	return st
}
