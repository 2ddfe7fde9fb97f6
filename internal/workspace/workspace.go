// Package workspace holds the mutable build configuration shared by node
// functions: the ordered package search path and the set of explicitly
// deleted packages. The configuration is loaded from an HCL workspace
// file and published as an immutable Snapshot behind a Holder; node
// functions read one snapshot at the start of an attempt and never see a
// reconfiguration mid-attempt.
package workspace

import (
	"fmt"
	"sync/atomic"
)

// Snapshot is one immutable view of the workspace configuration.
type Snapshot struct {
	roots   []string
	deleted map[string]struct{}
}

// NewSnapshot builds a snapshot from the ordered search-path roots and
// the deleted package names. Both slices are copied.
func NewSnapshot(roots []string, deleted []string) *Snapshot {
	s := &Snapshot{
		roots:   make([]string, len(roots)),
		deleted: make(map[string]struct{}, len(deleted)),
	}
	copy(s.roots, roots)
	for _, name := range deleted {
		s.deleted[name] = struct{}{}
	}
	return s
}

// Roots returns the ordered search-path roots. Callers must not modify
// the returned slice.
func (s *Snapshot) Roots() []string { return s.roots }

// IsDeleted reports whether a package name is explicitly deleted.
func (s *Snapshot) IsDeleted(name string) bool {
	_, ok := s.deleted[name]
	return ok
}

// Holder publishes the current snapshot. It is swapped only between
// evaluation generations; a computation attempt that read a snapshot
// keeps using it for the remainder of that attempt.
type Holder struct {
	p atomic.Pointer[Snapshot]
}

// NewHolder creates a holder seeded with s.
func NewHolder(s *Snapshot) *Holder {
	if s == nil {
		panic("workspace: NewHolder requires a snapshot")
	}
	h := &Holder{}
	h.p.Store(s)
	return h
}

// Get returns the current snapshot.
func (h *Holder) Get() *Snapshot { return h.p.Load() }

// Swap publishes a new snapshot for the next generation.
func (h *Holder) Swap(s *Snapshot) {
	if s == nil {
		panic("workspace: Swap requires a snapshot")
	}
	h.p.Store(s)
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("workspace{roots=%v deleted=%d}", s.roots, len(s.deleted))
}
