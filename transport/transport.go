// Package transport defines the point-to-point delivery abstraction
// Sequence Paxos and Ballot Leader Election send wire messages over.
// Concrete implementations (transport/inmemtransport, transport/grpctransport)
// only need to move opaque byte payloads; encoding/decoding those payloads
// into concrete message.Kind values is the caller's job.
package transport

import "context"

// Envelope is a delivered payload tagged with the sender's pid.
type Envelope struct {
	From    uint64
	Payload []byte
}

// Transport delivers opaque payloads point-to-point with at-least-once,
// unordered semantics. Handlers above this layer must tolerate duplicate
// or reordered deliveries.
type Transport interface {
	Send(ctx context.Context, to uint64, payload []byte) error
	Inbox() <-chan Envelope
}
