package ble_test

import (
	"testing"
	"time"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/ble"
	"github.com/AbyelT/omnipaxos/transport/inmemtransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInstance(t *testing.T, hub *inmemtransport.Hub, pid uint64, peers []uint64) *ble.BLE {
	t.Helper()
	trans := hub.Register(pid, 16)
	cfg := ble.Config{
		Pid:                  pid,
		Peers:                peers,
		HBDelay:              10 * time.Millisecond,
		InitialLeaderTimeout: 10 * time.Millisecond,
		BufferSize:           16,
	}
	inst, err := ble.New(cfg, trans, zap.NewNop().Sugar())
	require.NoError(t, err)
	return inst
}

func TestThreeNodesConvergeOnSameLeader(t *testing.T) {
	hub := inmemtransport.NewHub()
	a := newInstance(t, hub, 1, []uint64{2, 3})
	b := newInstance(t, hub, 2, []uint64{1, 3})
	c := newInstance(t, hub, 3, []uint64{1, 2})

	go a.Run()
	go b.Run()
	go c.Run()
	defer a.Stop(time.Second)
	defer b.Stop(time.Second)
	defer c.Stop(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		la, lb, lc := a.Watch().Current(), b.Watch().Current(), c.Watch().Current()
		if !la.Equal(ballot.Default()) && la.Equal(lb) && lb.Equal(lc) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("nodes did not converge on a common leader ballot in time")
}

func TestConfigValidation(t *testing.T) {
	_, err := ble.New(ble.Config{Pid: 0, Peers: []uint64{2}, HBDelay: time.Millisecond}, nil, zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = ble.New(ble.Config{Pid: 1, Peers: nil, HBDelay: time.Millisecond}, nil, zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = ble.New(ble.Config{Pid: 1, Peers: []uint64{1}, HBDelay: time.Millisecond}, nil, zap.NewNop().Sugar())
	assert.Error(t, err, "peers must not contain this node's own pid")
}

func TestNewTestWatchPreSeedsLeader(t *testing.T) {
	seed := ballot.Ballot{N: 3, Pid: 7}
	w := ble.NewTestWatch(seed)
	assert.True(t, w.Current().Equal(seed))
}
