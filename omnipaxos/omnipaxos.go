// Package omnipaxos is the engine's public entry point: Node wires a
// Ballot Leader Election instance to a Sequence Paxos instance over a
// shared leader watch, and exposes the replicated-log API a caller
// actually wants (Append/Read/Reconfigure/...), direct structural
// successors of the original design's OmniPaxosNode/OmniPaxosHandle.
package omnipaxos

import (
	"context"
	"time"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/ble"
	"github.com/AbyelT/omnipaxos/sequencepaxos"
	"github.com/AbyelT/omnipaxos/storage"
	"github.com/AbyelT/omnipaxos/transport"
	"go.uber.org/zap"
)

// Node is one replica of the replicated log. Construct with New, call
// Run once to start both internal loops, and drive it via Append/Read/
// etc.; Stop shuts both loops down.
type Node[T any, S any] struct {
	ble *ble.BLE
	sp  *sequencepaxos.SequencePaxos[T, S]
}

// New wires a BLE instance and a SequencePaxos instance together under
// cfg. bleTrans and spTrans are typically two registrations against
// separate transports (or separate hubs/listeners) so election traffic
// and replication traffic never share a queue.
func New[T any, S any](
	cfg Config[T, S],
	backend storage.Storage[T, S],
	bleTrans transport.Transport,
	spTrans transport.Transport,
	logger *zap.SugaredLogger,
) (*Node[T, S], error) {
	bleCfg := ble.Config{
		Pid:                  cfg.Pid,
		Peers:                cfg.Peers,
		HBDelay:              cfg.HBDelay,
		InitialLeaderTimeout: cfg.InitialLeaderTimeout,
		Priority:             cfg.Priority,
		BufferSize:           cfg.BufferSize,
		InitialLeader:        cfg.InitialLeader,
	}
	b, err := ble.New(bleCfg, bleTrans, logger)
	if err != nil {
		return nil, err
	}

	spCfg := sequencepaxos.Config[T, S]{
		Pid:             cfg.Pid,
		Peers:           cfg.Peers,
		BufferSize:      cfg.BufferSize,
		SnapshotHandler: cfg.SnapshotHandler,
		ConfigID:        cfg.ConfigID,
	}
	sp, err := sequencepaxos.New[T, S](spCfg, backend, spTrans, b.Watch(), logger)
	if err != nil {
		return nil, err
	}

	return &Node[T, S]{ble: b, sp: sp}, nil
}

// Run starts both internal event loops in their own goroutines and
// returns immediately.
func (n *Node[T, S]) Run() {
	go n.ble.Run()
	go n.sp.Run()
}

// Stop shuts both loops down, waiting up to timeout for each.
func (n *Node[T, S]) Stop(timeout time.Duration) {
	n.sp.Stop(timeout)
	n.ble.Stop(timeout)
}

// Append proposes entry for replication. See sequencepaxos.Append.
func (n *Node[T, S]) Append(ctx context.Context, entry T) error {
	return n.sp.Append(ctx, entry)
}

// Read blocks until idx is decided, then returns its entry.
func (n *Node[T, S]) Read(ctx context.Context, idx uint64) (T, error) {
	return n.sp.Read(ctx, idx)
}

// ReadEntries blocks until to is decided, then returns entries [from, to).
func (n *Node[T, S]) ReadEntries(ctx context.Context, from, to uint64) ([]T, error) {
	return n.sp.ReadEntries(ctx, from, to)
}

// DecidedIdx returns ld, the number of log entries this node currently
// knows to be decided (entries [0, ld) are decided).
func (n *Node[T, S]) DecidedIdx() uint64 {
	return n.sp.DecidedIdx()
}

// CurrentLeader returns the ballot this node currently replicates under.
func (n *Node[T, S]) CurrentLeader() ballot.Ballot {
	return n.sp.CurrentLeader()
}

// Reconfigure closes the current configuration in favor of nodes.
func (n *Node[T, S]) Reconfigure(ctx context.Context, nodes []uint64, metadata []byte) error {
	return n.sp.Reconfigure(ctx, nodes, metadata)
}

// Snapshot folds decided entries into the configured domain snapshot and
// trims the log accordingly.
func (n *Node[T, S]) Snapshot(ctx context.Context) error {
	return n.sp.Snapshot(ctx)
}

// Trim discards entries below idx without taking a snapshot.
func (n *Node[T, S]) Trim(ctx context.Context, idx uint64) error {
	return n.sp.Trim(ctx, idx)
}

// FailRecovery reloads cached state from durable storage. Call once
// after constructing a Node over a backend that survived a crash, before
// Run starts processing messages.
func (n *Node[T, S]) FailRecovery() error {
	return n.sp.FailRecovery()
}
