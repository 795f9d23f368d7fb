// Package ident issues strictly increasing integer identities per entity kind.
package ident

import "sync/atomic"

// Kind selects one of the per-entity identity counters.
type Kind int

const (
	KindUser Kind = iota
	KindLecturer
	KindClaim
	KindApproval
	KindDocument

	numKinds
)

// Allocator hands out unique positive identities. The zero value is ready
// to use and starts every kind at 1.
type Allocator struct {
	counters [numKinds]atomic.Int64
}

// Next returns the next identity for the kind. It is safe for concurrent
// use; no two calls ever return the same value and results are strictly
// increasing per kind.
func (a *Allocator) Next(k Kind) int64 {
	return a.counters[k].Add(1)
}

// Current reports the highest identity issued so far for the kind
// (0 if none), for inclusion in snapshots.
func (a *Allocator) Current(k Kind) int64 {
	return a.counters[k].Load()
}

// Restore resets the counter for the kind to v, so identities issued after
// a restart remain unique. Only called while no allocations are in flight.
func (a *Allocator) Restore(k Kind, v int64) {
	a.counters[k].Store(v)
}
