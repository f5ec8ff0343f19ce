package sequencepaxos

import (
	"context"
	"fmt"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/message"
)

type appendRequest[T any] struct {
	entry  T
	respCh chan error
}

type readRangeResult[T any] struct {
	entries []T
	err     error
}

type readRequest[T any] struct {
	idx    uint64
	respCh chan readRangeResult[T]
}

type readRangeRequest[T any] struct {
	from, to uint64
	respCh   chan readRangeResult[T]
}

type readWaiter[T any] struct {
	from, to uint64
	respCh   chan readRangeResult[T]
}

// Append proposes entry for replication. As AcceptLeader, entry is durably
// appended to the local log and replicated before Append returns. As
// PrepareLeader, entry is queued in memory and replicated once phase 1
// completes. Otherwise it is forwarded to whichever leader BLE currently
// names, and Append returns without waiting for the leader to store it.
// Append never waits for the entry to be decided — use Read or
// ReadEntries to observe decided state.
func (sp *SequencePaxos[T, S]) Append(ctx context.Context, entry T) error {
	respCh := make(chan error, 1)
	select {
	case sp.appendCh <- appendRequest[T]{entry: entry, respCh: respCh}:
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

// Read blocks until idx is decided, then returns its entry.
func (sp *SequencePaxos[T, S]) Read(ctx context.Context, idx uint64) (T, error) {
	var zero T
	respCh := make(chan readRangeResult[T], 1)
	select {
	case sp.readCh <- readRequest[T]{idx: idx, respCh: respCh}:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-sp.doneCh:
		return zero, ErrStopped
	}
	select {
	case res := <-respCh:
		if res.err != nil {
			return zero, res.err
		}
		if len(res.entries) == 0 {
			return zero, fmt.Errorf("sequencepaxos: index %d was trimmed or never written", idx)
		}
		return res.entries[0], nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-sp.doneCh:
		return zero, ErrStopped
	}
}

// ReadEntries blocks until to is decided, then returns entries [from, to).
func (sp *SequencePaxos[T, S]) ReadEntries(ctx context.Context, from, to uint64) ([]T, error) {
	respCh := make(chan readRangeResult[T], 1)
	select {
	case sp.readRangeCh <- readRangeRequest[T]{from: from, to: to, respCh: respCh}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sp.doneCh:
		return nil, ErrStopped
	}
	select {
	case res := <-respCh:
		return res.entries, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sp.doneCh:
		return nil, ErrStopped
	}
}

// DecidedIdx returns ld, the number of log entries this node currently
// knows to be decided by a write quorum (entries [0, ld) are decided).
func (sp *SequencePaxos[T, S]) DecidedIdx() uint64 {
	return sp.storage.GetDecidedIdx()
}

// CurrentLeader returns the ballot this node is currently replicating
// under, as last reported by BLE.
func (sp *SequencePaxos[T, S]) CurrentLeader() ballot.Ballot {
	return sp.leader.Current()
}

// FailRecovery reloads cached state from durable storage. Call this once
// after constructing a new SequencePaxos over a backend that survived a
// crash, before Run starts processing messages.
func (sp *SequencePaxos[T, S]) FailRecovery() error {
	return sp.storage.Reload()
}

func (sp *SequencePaxos[T, S]) handleAppend(req appendRequest[T]) {
	if ss, err := sp.storage.GetStopSign(); err != nil {
		req.respCh <- storageFault(err)
		return
	} else if ss != nil && ss.Decided {
		req.respCh <- ErrStopped
		return
	}

	switch sp.role {
	case AcceptLeader:
		req.respCh <- sp.appendAsLeader([]T{req.entry})
	case PrepareLeader:
		sp.pending = append(sp.pending, req.entry)
		req.respCh <- nil
	default:
		leader := sp.leader.Current()
		if leader.Pid == 0 {
			req.respCh <- ErrConfigError
			return
		}
		sp.send(ctxBG, leader.Pid, message.KindForwardAppend, message.ForwardAppend[T]{Entries: []T{req.entry}})
		req.respCh <- nil
	}
}

func (sp *SequencePaxos[T, S]) handleForwardAppend(m message.ForwardAppend[T]) {
	if sp.role != AcceptLeader {
		return
	}
	if err := sp.appendAsLeader(m.Entries); err != nil {
		sp.fail(err)
	}
}

// appendAsLeader durably appends entries to the log and replicates them
// to every peer under the current ballot.
func (sp *SequencePaxos[T, S]) appendAsLeader(entries []T) error {
	if ss, err := sp.storage.GetStopSign(); err != nil {
		return storageFault(err)
	} else if ss != nil && ss.Decided {
		return ErrStopped
	}

	fromIdx, err := sp.storage.GetLogLen()
	if err != nil {
		return storageFault(err)
	}
	newLen, err := sp.storage.AppendEntries(entries)
	if err != nil {
		return storageFault(err)
	}
	sp.acceptedLen[sp.cfg.Pid] = newLen
	sp.broadcast(message.KindAccept, message.Accept[T]{Ballot: sp.myBallot, Entries: entries, FromIdx: fromIdx})
	sp.maybeDecide()
	return nil
}

// flushPending replicates entries accepted from clients while this node
// was still PrepareLeader, once phase 1 completes.
func (sp *SequencePaxos[T, S]) flushPending() {
	if len(sp.pending) == 0 {
		return
	}
	entries := sp.pending
	sp.pending = nil
	if err := sp.appendAsLeader(entries); err != nil {
		sp.fail(err)
	}
}

func (sp *SequencePaxos[T, S]) handleRead(req readRequest[T]) {
	sp.serveOrQueue(req.idx, req.idx+1, req.respCh)
}

func (sp *SequencePaxos[T, S]) handleReadRange(req readRangeRequest[T]) {
	sp.serveOrQueue(req.from, req.to, req.respCh)
}

func (sp *SequencePaxos[T, S]) serveOrQueue(from, to uint64, respCh chan readRangeResult[T]) {
	if to <= sp.storage.GetDecidedIdx() {
		entries, err := sp.storage.GetEntries(from, to)
		respCh <- readRangeResult[T]{entries: entries, err: storageFault(err)}
		return
	}
	sp.waiters = append(sp.waiters, readWaiter[T]{from: from, to: to, respCh: respCh})
}

// wakeReaders serves every queued Read/ReadEntries call whose upper bound
// has since been decided.
func (sp *SequencePaxos[T, S]) wakeReaders() {
	ld := sp.storage.GetDecidedIdx()
	remaining := sp.waiters[:0]
	for _, w := range sp.waiters {
		if w.to > ld {
			remaining = append(remaining, w)
			continue
		}
		entries, err := sp.storage.GetEntries(w.from, w.to)
		w.respCh <- readRangeResult[T]{entries: entries, err: storageFault(err)}
	}
	sp.waiters = remaining
}
