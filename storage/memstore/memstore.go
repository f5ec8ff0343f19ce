// Package memstore is a Go port of the reference omnipaxos_storage in-memory
// backend: everything lives in a slice and a handful of fields, with no
// durability at all. It is the backend used by tests and by demo nodes that
// don't care about surviving a restart.
//
// Unlike the original Rust prototype, indices into the log stay absolute
// across a Trim: the physical slice only ever holds the live suffix, but
// From/To parameters are always absolute offsets into the full, untrimmed
// log, per the storage contract's trimmed_idx invariant.
package memstore

import (
	"sync"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/storage"
)

// MemoryStorage implements storage.Storage entirely in RAM.
type MemoryStorage[T any, S any] struct {
	mu sync.Mutex

	log  []T    // physically holds only the live suffix
	base uint64 // absolute index of log[0]; advances on Trim

	promise     ballot.Ballot
	acceptRound ballot.Ballot
	decidedIdx  uint64
	trimmedIdx  uint64
	snapshot    *S
	stopsign    *storage.StopSignEntry
}

// New returns an empty in-memory backend.
func New[T any, S any]() *MemoryStorage[T, S] {
	return &MemoryStorage[T, S]{}
}

func (m *MemoryStorage[T, S]) AppendEntry(entry T) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, entry)
	return m.base + uint64(len(m.log)), nil
}

func (m *MemoryStorage[T, S]) AppendEntries(entries []T) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, entries...)
	return m.base + uint64(len(m.log)), nil
}

func (m *MemoryStorage[T, S]) AppendOnPrefix(fromIdx uint64, entries []T) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel := m.relative(fromIdx)
	if rel > uint64(len(m.log)) {
		rel = uint64(len(m.log))
	}
	m.log = append(m.log[:rel:rel], entries...)
	return m.base + uint64(len(m.log)), nil
}

func (m *MemoryStorage[T, S]) SetPromise(n ballot.Ballot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promise = n
	return nil
}

func (m *MemoryStorage[T, S]) GetPromise() (ballot.Ballot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.promise, nil
}

func (m *MemoryStorage[T, S]) SetDecidedIdx(ld uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decidedIdx = ld
	return nil
}

func (m *MemoryStorage[T, S]) GetDecidedIdx() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decidedIdx, nil
}

func (m *MemoryStorage[T, S]) SetAcceptedRound(na ballot.Ballot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceptRound = na
	return nil
}

func (m *MemoryStorage[T, S]) GetAcceptedRound() (ballot.Ballot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acceptRound, nil
}

func (m *MemoryStorage[T, S]) GetEntries(from, to uint64) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sliceOrEmpty(from, to), nil
}

func (m *MemoryStorage[T, S]) GetLogLen() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base + uint64(len(m.log)), nil
}

func (m *MemoryStorage[T, S]) GetSuffix(from uint64) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sliceOrEmpty(from, m.base+uint64(len(m.log))), nil
}

func (m *MemoryStorage[T, S]) SetStopSign(s storage.StopSignEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s
	m.stopsign = &cp
	return nil
}

func (m *MemoryStorage[T, S]) GetStopSign() (*storage.StopSignEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopsign == nil {
		return nil, nil
	}
	cp := *m.stopsign
	return &cp, nil
}

// Trim physically drops the prefix [base, idx) from the live slice. idx is
// an absolute index; it must be >= base (trim never moves backwards).
func (m *MemoryStorage[T, S]) Trim(idx uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx <= m.base {
		return nil
	}
	rel := m.relative(idx)
	if rel > uint64(len(m.log)) {
		rel = uint64(len(m.log))
	}
	m.log = append([]T{}, m.log[rel:]...)
	m.base += rel
	return nil
}

func (m *MemoryStorage[T, S]) SetCompactedIdx(idx uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmedIdx = idx
	return nil
}

func (m *MemoryStorage[T, S]) GetCompactedIdx() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trimmedIdx, nil
}

func (m *MemoryStorage[T, S]) SetSnapshot(snap S) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := snap
	m.snapshot = &cp
	return nil
}

func (m *MemoryStorage[T, S]) GetSnapshot() (*S, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, nil
	}
	cp := *m.snapshot
	return &cp, nil
}

// relative translates an absolute log index into an index into the
// physically-retained slice. Callers must hold mu.
func (m *MemoryStorage[T, S]) relative(abs uint64) uint64 {
	if abs < m.base {
		return 0
	}
	return abs - m.base
}

// sliceOrEmpty mirrors the original backend's `.get(from..to).unwrap_or(&[])`:
// any out-of-range or trimmed-away request yields an empty slice, never a
// panic or error. Callers must hold mu.
func (m *MemoryStorage[T, S]) sliceOrEmpty(from, to uint64) []T {
	if from > to || from < m.base {
		return []T{}
	}
	relFrom := m.relative(from)
	relTo := m.relative(to)
	n := uint64(len(m.log))
	if relFrom > n || relTo > n {
		return []T{}
	}
	out := make([]T, relTo-relFrom)
	copy(out, m.log[relFrom:relTo])
	return out
}
