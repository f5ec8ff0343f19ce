package storage

import (
	"sync"

	"github.com/AbyelT/omnipaxos/ballot"
)

// cachedValues is the subset of durable state CachedState mirrors in memory:
// n_prom, acc_round, ld and trimmed_idx. They are exactly the fields read on
// every hot-path decision (role transitions, quorum accounting) and so are
// worth keeping off the storage round-trip.
type cachedValues struct {
	promise      ballot.Ballot
	acceptRound  ballot.Ballot
	decidedIdx   uint64
	compactedIdx uint64
}

// CachedState wraps a Storage backend with a write-through cache. Every
// mutator writes to the backend first; only once that write succeeds does
// the cache advance. On failure the cache is left untouched (it still holds
// the last durably-committed value), so memory can never lead disk.
type CachedState[T any, S any] struct {
	backend Storage[T, S]

	mu    sync.RWMutex
	cache cachedValues
}

// NewCachedState wraps backend, priming the cache from whatever state is
// already durable (used by fail-recovery after a crash-reopen).
func NewCachedState[T any, S any](backend Storage[T, S]) (*CachedState[T, S], error) {
	prom, err := backend.GetPromise()
	if err != nil {
		return nil, err
	}
	acc, err := backend.GetAcceptedRound()
	if err != nil {
		return nil, err
	}
	ld, err := backend.GetDecidedIdx()
	if err != nil {
		return nil, err
	}
	trimmed, err := backend.GetCompactedIdx()
	if err != nil {
		return nil, err
	}
	return &CachedState[T, S]{
		backend: backend,
		cache: cachedValues{
			promise:      prom,
			acceptRound:  acc,
			decidedIdx:   ld,
			compactedIdx: trimmed,
		},
	}, nil
}

// Reload re-reads the cached fields from the backend, discarding whatever
// the cache currently holds. Used by fail_recovery after a restart.
func (c *CachedState[T, S]) Reload() error {
	fresh, err := NewCachedState[T, S](c.backend)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cache = fresh.cache
	c.mu.Unlock()
	return nil
}

func (c *CachedState[T, S]) SetPromise(n ballot.Ballot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prior := c.cache.promise
	if err := c.backend.SetPromise(n); err != nil {
		c.cache.promise = prior
		return err
	}
	c.cache.promise = n
	return nil
}

func (c *CachedState[T, S]) GetPromise() ballot.Ballot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.promise
}

func (c *CachedState[T, S]) SetAcceptedRound(na ballot.Ballot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prior := c.cache.acceptRound
	if err := c.backend.SetAcceptedRound(na); err != nil {
		c.cache.acceptRound = prior
		return err
	}
	c.cache.acceptRound = na
	return nil
}

func (c *CachedState[T, S]) GetAcceptedRound() ballot.Ballot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.acceptRound
}

func (c *CachedState[T, S]) SetDecidedIdx(ld uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prior := c.cache.decidedIdx
	if err := c.backend.SetDecidedIdx(ld); err != nil {
		c.cache.decidedIdx = prior
		return err
	}
	c.cache.decidedIdx = ld
	return nil
}

func (c *CachedState[T, S]) GetDecidedIdx() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.decidedIdx
}

func (c *CachedState[T, S]) SetCompactedIdx(idx uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prior := c.cache.compactedIdx
	if err := c.backend.SetCompactedIdx(idx); err != nil {
		c.cache.compactedIdx = prior
		return err
	}
	c.cache.compactedIdx = idx
	return nil
}

func (c *CachedState[T, S]) GetCompactedIdx() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.compactedIdx
}

// The remaining operations pass straight through: they don't participate in
// the cached fast-path fields, but they still go through CachedState so SP
// only ever talks to one handle.

func (c *CachedState[T, S]) AppendEntry(entry T) (uint64, error) {
	return c.backend.AppendEntry(entry)
}

func (c *CachedState[T, S]) AppendEntries(entries []T) (uint64, error) {
	return c.backend.AppendEntries(entries)
}

func (c *CachedState[T, S]) AppendOnPrefix(fromIdx uint64, entries []T) (uint64, error) {
	return c.backend.AppendOnPrefix(fromIdx, entries)
}

func (c *CachedState[T, S]) GetEntries(from, to uint64) ([]T, error) {
	return c.backend.GetEntries(from, to)
}

func (c *CachedState[T, S]) GetLogLen() (uint64, error) {
	return c.backend.GetLogLen()
}

func (c *CachedState[T, S]) GetSuffix(from uint64) ([]T, error) {
	return c.backend.GetSuffix(from)
}

func (c *CachedState[T, S]) SetStopSign(s StopSignEntry) error {
	return c.backend.SetStopSign(s)
}

func (c *CachedState[T, S]) GetStopSign() (*StopSignEntry, error) {
	return c.backend.GetStopSign()
}

func (c *CachedState[T, S]) Trim(idx uint64) error {
	return c.backend.Trim(idx)
}

func (c *CachedState[T, S]) SetSnapshot(snap S) error {
	return c.backend.SetSnapshot(snap)
}

func (c *CachedState[T, S]) GetSnapshot() (*S, error) {
	return c.backend.GetSnapshot()
}
