package sequencepaxos_test

import (
	"context"
	"testing"
	"time"

	"github.com/AbyelT/omnipaxos/ble"
	"github.com/AbyelT/omnipaxos/sequencepaxos"
	"github.com/AbyelT/omnipaxos/storage/memstore"
	"github.com/AbyelT/omnipaxos/transport/inmemtransport"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cluster struct {
	nodes map[uint64]*sequencepaxos.SequencePaxos[string, string]
	bles  map[uint64]*ble.BLE
}

func newCluster(t *testing.T, pids []uint64) *cluster {
	t.Helper()
	logger := zap.NewNop().Sugar()
	bleHub := inmemtransport.NewHub()
	spHub := inmemtransport.NewHub()
	c := &cluster{
		nodes: make(map[uint64]*sequencepaxos.SequencePaxos[string, string]),
		bles:  make(map[uint64]*ble.BLE),
	}

	peersOf := func(self uint64) []uint64 {
		var peers []uint64
		for _, p := range pids {
			if p != self {
				peers = append(peers, p)
			}
		}
		return peers
	}

	spWatches := make(map[uint64]*ble.Watch)
	for _, pid := range pids {
		bleTrans := bleHub.Register(pid, 16)
		bleCfg := ble.Config{
			Pid:                  pid,
			Peers:                peersOf(pid),
			HBDelay:              5 * time.Millisecond,
			InitialLeaderTimeout: 20 * time.Millisecond,
			Priority:             0,
			BufferSize:           16,
		}
		b, err := ble.New(bleCfg, bleTrans, logger)
		require.NoError(t, err)
		c.bles[pid] = b
		spWatches[pid] = b.Watch()
	}

	for _, pid := range pids {
		spTrans := spHub.Register(pid, 16)
		backend := memstore.New[string, string]()
		cfg := sequencepaxos.Config[string, string]{
			Pid:        pid,
			Peers:      peersOf(pid),
			BufferSize: 16,
			ConfigID:   1,
		}
		sp, err := sequencepaxos.New[string, string](cfg, backend, spTrans, spWatches[pid], logger)
		require.NoError(t, err)
		c.nodes[pid] = sp
	}

	for _, b := range c.bles {
		go b.Run()
	}
	for _, sp := range c.nodes {
		go sp.Run()
	}
	return c
}

func (c *cluster) stop() {
	for _, sp := range c.nodes {
		sp.Stop(time.Second)
	}
	for _, b := range c.bles {
		b.Stop(time.Second)
	}
}

func (c *cluster) leader(t *testing.T) *sequencepaxos.SequencePaxos[string, string] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for pid, sp := range c.nodes {
			if sp.CurrentLeader().Pid == pid {
				return sp
			}
		}
		select {
		case <-deadline:
			t.Fatal("no leader elected in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestThreeNodeClusterAppendsAndDecides(t *testing.T) {
	c := newCluster(t, []uint64{1, 2, 3})
	defer c.stop()

	leader := c.leader(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, leader.Append(ctx, "alpha"))
	require.NoError(t, leader.Append(ctx, "beta"))

	for _, sp := range c.nodes {
		val, err := sp.Read(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, "alpha", val)
	}
}

func TestFollowerForwardsAppendToLeader(t *testing.T) {
	c := newCluster(t, []uint64{1, 2, 3})
	defer c.stop()

	leader := c.leader(t)
	var follower *sequencepaxos.SequencePaxos[string, string]
	for _, sp := range c.nodes {
		if sp != leader {
			follower = sp
			break
		}
	}
	require.NotNil(t, follower)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, follower.Append(ctx, "forwarded"))

	entries, err := leader.ReadEntries(ctx, 0, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"forwarded"}, entries)
}

func TestTrimRejectsIndexBeyondDecided(t *testing.T) {
	c := newCluster(t, []uint64{1, 2, 3})
	defer c.stop()

	leader := c.leader(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, leader.Append(ctx, "one"))
	_, err := leader.Read(ctx, 0)
	require.NoError(t, err)

	err = leader.Trim(ctx, 100)
	require.ErrorIs(t, err, sequencepaxos.ErrConfigError)
}
