package grpctransport_test

import (
	"context"
	"testing"
	"time"

	"github.com/AbyelT/omnipaxos/transport/grpctransport"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTransport(t *testing.T, pid uint64, addr string, peers map[uint64]string) *grpctransport.GRPCTransport {
	t.Helper()
	logger := zap.NewNop().Sugar()
	tr, err := grpctransport.New(pid, addr, peers, 8, logger)
	require.NoError(t, err)
	go tr.Serve()
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestSendDeliversAcrossRealConnections(t *testing.T) {
	addrA := "127.0.0.1:18801"
	addrB := "127.0.0.1:18802"

	a := newTransport(t, 1, addrA, map[uint64]string{2: addrB})
	b := newTransport(t, 2, addrB, map[uint64]string{1: addrA})
	_ = a

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Give both servers a moment to start accepting connections.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, a.Send(ctx, 2, []byte("ping")))

	select {
	case env := <-b.Inbox():
		require.Equal(t, uint64(1), env.From)
		require.Equal(t, []byte("ping"), env.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}
