package omnipaxos_test

import (
	"context"
	"testing"
	"time"

	"github.com/AbyelT/omnipaxos/omnipaxos"
	"github.com/AbyelT/omnipaxos/storage/memstore"
	"github.com/AbyelT/omnipaxos/transport/inmemtransport"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCluster(t *testing.T, pids []uint64) map[uint64]*omnipaxos.Node[string, string] {
	t.Helper()
	logger := zap.NewNop().Sugar()
	bleHub := inmemtransport.NewHub()
	spHub := inmemtransport.NewHub()

	peersOf := func(self uint64) []uint64 {
		var peers []uint64
		for _, p := range pids {
			if p != self {
				peers = append(peers, p)
			}
		}
		return peers
	}

	nodes := make(map[uint64]*omnipaxos.Node[string, string])
	for _, pid := range pids {
		cfg := omnipaxos.Config[string, string]{
			Pid:                  pid,
			Peers:                peersOf(pid),
			ConfigID:             1,
			BufferSize:           16,
			HBDelay:              5 * time.Millisecond,
			InitialLeaderTimeout: 20 * time.Millisecond,
		}
		backend := memstore.New[string, string]()
		node, err := omnipaxos.New[string, string](
			cfg, backend, bleHub.Register(pid, 16), spHub.Register(pid, 16), logger,
		)
		require.NoError(t, err)
		nodes[pid] = node
	}
	for _, node := range nodes {
		node.Run()
	}
	return nodes
}

func awaitLeader(t *testing.T, nodes map[uint64]*omnipaxos.Node[string, string]) *omnipaxos.Node[string, string] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for pid, node := range nodes {
			if node.CurrentLeader().Pid == pid {
				return node
			}
		}
		select {
		case <-deadline:
			t.Fatal("no leader elected in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNodeClusterReplicatesAppends(t *testing.T) {
	nodes := newTestCluster(t, []uint64{1, 2, 3})
	defer func() {
		for _, n := range nodes {
			n.Stop(time.Second)
		}
	}()

	leader := awaitLeader(t, nodes)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, leader.Append(ctx, "first"))
	require.NoError(t, leader.Append(ctx, "second"))

	for _, node := range nodes {
		entries, err := node.ReadEntries(ctx, 0, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"first", "second"}, entries)
	}
}

func TestNodeFailRecoveryReloadsState(t *testing.T) {
	nodes := newTestCluster(t, []uint64{1, 2, 3})
	defer func() {
		for _, n := range nodes {
			n.Stop(time.Second)
		}
	}()

	leader := awaitLeader(t, nodes)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, leader.Append(ctx, "durable"))
	_, err := leader.Read(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, leader.FailRecovery())
	require.Equal(t, uint64(1), leader.DecidedIdx())
}
