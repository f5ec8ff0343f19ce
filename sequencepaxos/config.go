package sequencepaxos

import (
	"fmt"

	"github.com/AbyelT/omnipaxos/storage"
)

// Config enumerates the node options SP reads at construction time.
type Config[T any, S any] struct {
	// Pid is this node's identifier. Must be non-zero.
	Pid uint64
	// Peers lists every other replica. Must be non-empty and exclude Pid.
	Peers []uint64
	// BufferSize bounds in-flight client requests.
	BufferSize int
	// SnapshotHandler compacts entries into a domain snapshot. Defaults
	// to storage.NoSnapshot[T, S] (UseSnapshots()==false) when nil.
	SnapshotHandler storage.SnapshotHandler[T, S]
	// ConfigID identifies the configuration this node currently belongs
	// to. It is stamped onto a StopSign when this node closes the
	// configuration via Reconfigure, handing off to the successor's
	// Nodes list.
	ConfigID uint32
}

// Validate checks the pid/peers constraints shared with ble.Config.
func (c Config[T, S]) Validate() error {
	if c.Pid == 0 {
		return fmt.Errorf("sequencepaxos: %w: pid must be non-zero", ErrConfigError)
	}
	if len(c.Peers) == 0 {
		return fmt.Errorf("sequencepaxos: %w: peers must be non-empty", ErrConfigError)
	}
	for _, p := range c.Peers {
		if p == c.Pid {
			return fmt.Errorf("sequencepaxos: %w: peers must not contain this node's own pid", ErrConfigError)
		}
	}
	if c.ConfigID == 0 {
		return fmt.Errorf("sequencepaxos: %w: config id must be non-zero", ErrConfigError)
	}
	return nil
}

func (c Config[T, S]) quorum() int {
	total := len(c.Peers) + 1
	return total/2 + 1
}
