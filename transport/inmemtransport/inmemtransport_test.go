package inmemtransport_test

import (
	"context"
	"testing"
	"time"

	"github.com/AbyelT/omnipaxos/transport/inmemtransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversToRegisteredPeer(t *testing.T) {
	hub := inmemtransport.NewHub()
	a := hub.Register(1, 4)
	b := hub.Register(2, 4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, a.Send(ctx, 2, []byte("hello")))

	select {
	case env := <-b.Inbox():
		assert.Equal(t, uint64(1), env.From)
		assert.Equal(t, []byte("hello"), env.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestSendToUnknownPeerErrors(t *testing.T) {
	hub := inmemtransport.NewHub()
	a := hub.Register(1, 4)

	err := a.Send(context.Background(), 99, []byte("x"))
	assert.Error(t, err)
}

func TestSendBlocksOnFullInboxUntilContextDone(t *testing.T) {
	hub := inmemtransport.NewHub()
	a := hub.Register(1, 1)
	hub.Register(2, 1)

	require.NoError(t, a.Send(context.Background(), 2, []byte("first")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := a.Send(ctx, 2, []byte("second"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
