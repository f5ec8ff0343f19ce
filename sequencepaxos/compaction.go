package sequencepaxos

import (
	"context"

	"github.com/AbyelT/omnipaxos/message"
)

type snapshotRequest struct {
	respCh chan error
}

type trimRequest struct {
	idx    uint64
	respCh chan error
}

// Snapshot folds every decided, not-yet-compacted entry into the domain
// snapshot via the configured SnapshotHandler, then trims the log up to
// ld. Returns ErrNotSnapshottable when the entry type has no snapshot
// support configured.
func (sp *SequencePaxos[T, S]) Snapshot(ctx context.Context) error {
	respCh := make(chan error, 1)
	select {
	case sp.snapshotCh <- snapshotRequest{respCh: respCh}:
	case <-ctx.Done():
		return ctx.Err()
	case <-sp.doneCh:
		return ErrStopped
	}
	select {
	case err := <-respCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-sp.doneCh:
		return ErrStopped
	}
}

// Trim requests compaction of entries below idx without taking a
// snapshot. Rejected with ErrNotAllDecided unless every peer is known to
// have durably stored at least idx entries, and with ErrConfigError if
// idx is beyond what's currently decided.
func (sp *SequencePaxos[T, S]) Trim(ctx context.Context, idx uint64) error {
	respCh := make(chan error, 1)
	select {
	case sp.trimCh <- trimRequest{idx: idx, respCh: respCh}:
	case <-ctx.Done():
		return ctx.Err()
	case <-sp.doneCh:
		return ErrStopped
	}
	select {
	case err := <-respCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-sp.doneCh:
		return ErrStopped
	}
}

func (sp *SequencePaxos[T, S]) handleSnapshot(req snapshotRequest) {
	if !sp.snap.UseSnapshots() {
		req.respCh <- ErrNotSnapshottable
		return
	}
	ld := sp.storage.GetDecidedIdx()
	compacted := sp.storage.GetCompactedIdx()
	if ld <= compacted {
		req.respCh <- nil
		return
	}
	if !sp.allPeersAcked(ld) {
		req.respCh <- ErrNotAllDecided
		return
	}

	entries, err := sp.storage.GetEntries(compacted, ld)
	if err != nil {
		req.respCh <- storageFault(err)
		return
	}
	delta := sp.snap.Create(entries)

	base, err := sp.storage.GetSnapshot()
	if err != nil {
		req.respCh <- storageFault(err)
		return
	}
	if base == nil {
		base = &delta
	} else {
		sp.snap.Merge(base, delta)
	}

	if err := sp.storage.SetSnapshot(*base); err != nil {
		req.respCh <- storageFault(err)
		return
	}
	if err := sp.storage.Trim(ld); err != nil {
		req.respCh <- storageFault(err)
		return
	}
	if err := sp.storage.SetCompactedIdx(ld); err != nil {
		req.respCh <- storageFault(err)
		return
	}
	sp.broadcast(message.KindCompaction, message.Compaction[S]{
		Kind: message.CompactSnapshot, LastIncludedIdx: ld, Snapshot: *base,
	})
	req.respCh <- nil
}

func (sp *SequencePaxos[T, S]) handleTrim(req trimRequest) {
	ld := sp.storage.GetDecidedIdx()
	if req.idx > ld {
		req.respCh <- ErrConfigError
		return
	}
	if req.idx <= sp.storage.GetCompactedIdx() {
		req.respCh <- nil
		return
	}
	if !sp.allPeersAcked(req.idx) {
		req.respCh <- ErrNotAllDecided
		return
	}
	if err := sp.storage.Trim(req.idx); err != nil {
		req.respCh <- storageFault(err)
		return
	}
	if err := sp.storage.SetCompactedIdx(req.idx); err != nil {
		req.respCh <- storageFault(err)
		return
	}
	sp.broadcast(message.KindCompaction, message.Compaction[S]{Kind: message.CompactTrim, TrimTo: req.idx})
	req.respCh <- nil
}

// allPeersAcked approximates the "global consent" trim precondition: it
// treats the leader's tracked acceptedLen as a proxy for what every
// replica has durably appended, rather than polling compacted-index
// acknowledgements from each peer directly.
func (sp *SequencePaxos[T, S]) allPeersAcked(idx uint64) bool {
	if len(sp.acceptedLen) < len(sp.cfg.Peers)+1 {
		return false
	}
	for _, l := range sp.acceptedLen {
		if l < idx {
			return false
		}
	}
	return true
}

// handleCompactionMsg applies a leader-issued compaction to this
// follower's local state.
func (sp *SequencePaxos[T, S]) handleCompactionMsg(m message.Compaction[S]) {
	switch m.Kind {
	case message.CompactSnapshot:
		base, err := sp.storage.GetSnapshot()
		if err != nil {
			sp.fail(storageFault(err))
			return
		}
		snap := m.Snapshot
		if base != nil {
			sp.snap.Merge(base, snap)
			snap = *base
		}
		if err := sp.storage.SetSnapshot(snap); err != nil {
			sp.fail(storageFault(err))
			return
		}
		if err := sp.storage.Trim(m.LastIncludedIdx); err != nil {
			sp.fail(storageFault(err))
			return
		}
		if err := sp.storage.SetCompactedIdx(m.LastIncludedIdx); err != nil {
			sp.fail(storageFault(err))
		}
	case message.CompactTrim:
		if err := sp.storage.Trim(m.TrimTo); err != nil {
			sp.fail(storageFault(err))
			return
		}
		if err := sp.storage.SetCompactedIdx(m.TrimTo); err != nil {
			sp.fail(storageFault(err))
		}
	}
}
