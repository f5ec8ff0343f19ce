package ble

import (
	"fmt"
	"time"

	"github.com/AbyelT/omnipaxos/ballot"
)

// Config enumerates the node options BLE reads at construction time.
type Config struct {
	// Pid is this node's identifier. Must be non-zero.
	Pid uint64
	// Peers lists every other replica in the configuration. Must be
	// non-empty and must not contain Pid.
	Peers []uint64
	// HBDelay is the heartbeat tick interval.
	HBDelay time.Duration
	// InitialLeaderTimeout grants the first tick extra grace before the
	// quorum check runs, letting peers' transports warm up.
	InitialLeaderTimeout time.Duration
	// Priority is this node's leader-preference tiebreak; higher wins
	// ties against otherwise-equal ballots.
	Priority uint64
	// BufferSize is accepted but not read by BLE; heartbeat sends are not
	// bounded by it.
	BufferSize int
	// InitialLeader, if non-zero, pre-seeds the watch so SP can skip
	// waiting for the first election round.
	InitialLeader ballot.Ballot
}

// Validate checks the option constraints from the node-configuration
// table: pid must be non-zero, peers must be non-empty and exclude pid.
func (c Config) Validate() error {
	if c.Pid == 0 {
		return fmt.Errorf("ble: config error: pid must be non-zero")
	}
	if len(c.Peers) == 0 {
		return fmt.Errorf("ble: config error: peers must be non-empty")
	}
	for _, p := range c.Peers {
		if p == c.Pid {
			return fmt.Errorf("ble: config error: peers must not contain this node's own pid")
		}
	}
	if c.HBDelay <= 0 {
		return fmt.Errorf("ble: config error: hb_delay must be positive")
	}
	return nil
}

func (c Config) quorum() int {
	total := len(c.Peers) + 1
	return total/2 + 1
}
