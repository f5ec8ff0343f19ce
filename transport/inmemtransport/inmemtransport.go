// Package inmemtransport is a channel-based transport.Transport used by
// tests and single-process demos. Every registered node shares a Hub, the
// in-process analogue of the teacher's rpcCh: instead of one channel per
// server routing to a single local dispatcher, the Hub routes to whichever
// node's inbox channel a Send targets.
package inmemtransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/AbyelT/omnipaxos/transport"
)

// Hub is the shared switchboard a set of in-process nodes register with.
type Hub struct {
	mu    sync.RWMutex
	nodes map[uint64]*Transport
}

// NewHub returns an empty switchboard.
func NewHub() *Hub {
	return &Hub{nodes: make(map[uint64]*Transport)}
}

// Register creates and attaches a Transport for pid, with an inbox
// buffered to bufferSize (backpressure applies once full, per the
// buffer_size node option).
func (h *Hub) Register(pid uint64, bufferSize int) *Transport {
	t := &Transport{
		pid:   pid,
		hub:   h,
		inbox: make(chan transport.Envelope, bufferSize),
	}
	h.mu.Lock()
	h.nodes[pid] = t
	h.mu.Unlock()
	return t
}

// Unregister removes pid from the hub; further Sends to it fail.
func (h *Hub) Unregister(pid uint64) {
	h.mu.Lock()
	delete(h.nodes, pid)
	h.mu.Unlock()
}

// Transport is one node's endpoint on a Hub.
type Transport struct {
	pid   uint64
	hub   *Hub
	inbox chan transport.Envelope
}

// Send blocks until the destination's inbox accepts the payload or ctx is
// done, applying backpressure rather than dropping.
func (t *Transport) Send(ctx context.Context, to uint64, payload []byte) error {
	t.hub.mu.RLock()
	dest, ok := t.hub.nodes[to]
	t.hub.mu.RUnlock()
	if !ok {
		return fmt.Errorf("inmemtransport: no peer registered for pid %d", to)
	}
	env := transport.Envelope{From: t.pid, Payload: payload}
	select {
	case dest.inbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inbox returns the channel this node's peers deliver to.
func (t *Transport) Inbox() <-chan transport.Envelope {
	return t.inbox
}

var _ transport.Transport = (*Transport)(nil)
