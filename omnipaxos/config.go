package omnipaxos

import (
	"time"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/storage"
)

// Config enumerates the options needed to construct a Node. It is the
// union of ble.Config and sequencepaxos.Config's fields, since a Node
// wires exactly one of each together under a shared Pid/Peers/ConfigID.
type Config[T any, S any] struct {
	// Pid is this node's identifier. Must be non-zero.
	Pid uint64
	// Peers lists every other replica. Must be non-empty and exclude Pid.
	Peers []uint64
	// ConfigID identifies the configuration this node belongs to.
	ConfigID uint32
	// BufferSize bounds queued client requests in Sequence Paxos. BLE
	// does not read it.
	BufferSize int
	// Priority is this node's leader-preference tiebreak in elections.
	Priority uint64
	// HBDelay is BLE's heartbeat tick interval.
	HBDelay time.Duration
	// InitialLeaderTimeout grants BLE's first tick extra grace.
	InitialLeaderTimeout time.Duration
	// InitialLeader, if non-zero, pre-seeds the watch so this node (or a
	// named peer) starts the round already believing it leads, skipping
	// the usual election delay.
	InitialLeader ballot.Ballot
	// SnapshotHandler compacts entries into a domain snapshot. Defaults
	// to storage.NoSnapshot[T, S] when nil.
	SnapshotHandler storage.SnapshotHandler[T, S]
}
