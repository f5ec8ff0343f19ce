package ble

import (
	"sync/atomic"

	"github.com/AbyelT/omnipaxos/ballot"
)

// Watch is the single-producer (BLE), multi-consumer (SP) leader cell,
// mirroring the reference server's clusterLeader atomic.Value: readers
// always get the latest published ballot without blocking, and can
// optionally wait for the next change via Notify.
type Watch struct {
	leader atomic.Value // ballot.Ballot
	notify chan struct{}
}

func newWatch(initial ballot.Ballot) *Watch {
	w := &Watch{notify: make(chan struct{}, 1)}
	w.leader.Store(initial)
	// A pre-seeded leader counts as a change, so SP acts on it at startup
	// instead of waiting for an election to publish a different ballot.
	if !initial.Equal(ballot.Default()) {
		w.notify <- struct{}{}
	}
	return w
}

func (w *Watch) set(b ballot.Ballot) {
	w.leader.Store(b)
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Current returns the most recently elected ballot. Before any election
// it is the pre-seeded initial leader, or ballot.Default() when none was
// given.
func (w *Watch) Current() ballot.Ballot {
	return w.leader.Load().(ballot.Ballot)
}

// Notify fires (non-blocking, best-effort coalesced) whenever Current
// changes. Consumers should always re-read Current after a receive since
// multiple changes may coalesce into one notification.
func (w *Watch) Notify() <-chan struct{} {
	return w.notify
}

// NewTestWatch constructs a standalone Watch pre-seeded with leader, for
// tests that exercise SP against a canned leader signal without running a
// full BLE election loop.
func NewTestWatch(leader ballot.Ballot) *Watch {
	return newWatch(leader)
}
