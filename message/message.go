// Package message defines the wire messages exchanged between Sequence
// Paxos and Ballot Leader Election instances, and encodes them with one
// fixed codec: ugorji/go/codec's msgpack handle, the same one the
// teacher's own state machine uses for snapshots.
package message

import (
	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/storage"
	"github.com/ugorji/go/codec"
	"go.uber.org/zap/zapcore"
)

// Kind tags which concrete message a wire envelope carries.
type Kind int

const (
	KindPrepare Kind = iota
	KindPromise
	KindAcceptSync
	KindAccept
	KindAccepted
	KindAcceptStopSign
	KindAcceptedStopSign
	KindDecide
	KindDecideStopSign
	KindCompaction
	KindForwardAppend
	KindHBRequest
	KindHBReply
)

func (k Kind) String() string {
	switch k {
	case KindPrepare:
		return "Prepare"
	case KindPromise:
		return "Promise"
	case KindAcceptSync:
		return "AcceptSync"
	case KindAccept:
		return "Accept"
	case KindAccepted:
		return "Accepted"
	case KindAcceptStopSign:
		return "AcceptStopSign"
	case KindAcceptedStopSign:
		return "AcceptedStopSign"
	case KindDecide:
		return "Decide"
	case KindDecideStopSign:
		return "DecideStopSign"
	case KindCompaction:
		return "Compaction"
	case KindForwardAppend:
		return "ForwardAppend"
	case KindHBRequest:
		return "HBRequest"
	case KindHBReply:
		return "HBReply"
	default:
		return "Unknown"
	}
}

// Prepare is sent by a leader candidate to every peer when it observes a
// ballot strictly greater than its own n_prom.
type Prepare struct {
	Ballot        ballot.Ballot
	LdSender      uint64
	AcceptedRound ballot.Ballot
}

// Promise is a follower's phase-1 reply to Prepare.
type Promise[T any, S any] struct {
	Ballot        ballot.Ballot
	AcceptedRound ballot.Ballot
	DecidedIdx    uint64
	Suffix        []T
	StopSign      *storage.StopSignEntry
	Snapshot      *storage.SnapshotType[S]
}

// AcceptSync opens phase 2: the new leader pushes its reconciled suffix to
// every follower that promised.
type AcceptSync[T any] struct {
	Ballot     ballot.Ballot
	Suffix     []T
	FromIdx    uint64
	DecidedIdx uint64
	StopSign   *storage.StopSignEntry
}

// Accept replicates a batch of client-appended entries under Ballot,
// overwriting the follower's log from FromIdx onward.
type Accept[T any] struct {
	Ballot  ballot.Ballot
	Entries []T
	FromIdx uint64
}

func (a Accept[T]) MarshalLogObject(e zapcore.ObjectEncoder) error {
	if err := e.AddObject("ballot", a.Ballot); err != nil {
		return err
	}
	e.AddUint64("from_idx", a.FromIdx)
	e.AddInt("entry_count", len(a.Entries))
	return nil
}

// Accepted is a follower's acknowledgement that it durably holds the log
// up to NewLen under Ballot.
type Accepted struct {
	Ballot ballot.Ballot
	NewLen uint64
}

// AcceptStopSign proposes closing the current configuration.
type AcceptStopSign struct {
	Ballot   ballot.Ballot
	StopSign storage.StopSign
}

// AcceptedStopSign acknowledges a stop-sign has been durably stored.
type AcceptedStopSign struct {
	Ballot ballot.Ballot
}

// Decide advances the follower's decided index once a write quorum of
// Accepted has been observed at the leader.
type Decide struct {
	Ballot     ballot.Ballot
	DecidedIdx uint64
}

func (d Decide) MarshalLogObject(e zapcore.ObjectEncoder) error {
	if err := e.AddObject("ballot", d.Ballot); err != nil {
		return err
	}
	e.AddUint64("decided_idx", d.DecidedIdx)
	return nil
}

// DecideStopSign decides the pending stop-sign, terminating the
// configuration.
type DecideStopSign struct {
	Ballot ballot.Ballot
}

// CompactionKind distinguishes a plain trim from a snapshot-carrying
// compaction.
type CompactionKind int

const (
	CompactTrim CompactionKind = iota
	CompactSnapshot
)

// Compaction asks a follower to discard entries below a watermark, either
// bare (CompactTrim) or accompanied by a snapshot to install first
// (CompactSnapshot).
type Compaction[S any] struct {
	Kind            CompactionKind
	TrimTo          uint64
	LastIncludedIdx uint64
	Snapshot        S
}

// ForwardAppend relays a client append received by a non-leader to the
// current leader.
type ForwardAppend[T any] struct {
	Entries []T
}

// HBRequest is broadcast by a BLE instance at the start of each election
// round.
type HBRequest struct {
	Round uint64
}

// HBReply answers an HBRequest with the replying node's current ballot and
// whether it can currently see a quorum of peers.
type HBReply struct {
	Round           uint64
	Ballot          ballot.Ballot
	QuorumConnected bool
}

// Frame tags an already-encoded message body with its Kind, so a receiver
// sharing one transport.Inbox across multiple message families (BLE
// heartbeats and SP protocol messages alike) can dispatch before decoding.
type Frame struct {
	Kind Kind
	Body []byte
}

// EncodeFrame encodes v, then wraps the result in a Frame tagged with kind.
func EncodeFrame(kind Kind, v any) ([]byte, error) {
	body, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return Encode(Frame{Kind: kind, Body: body})
}

// DecodeFrame unwraps a Frame, returning its Kind and the still-encoded
// inner body for the caller to Decode into the concrete type that Kind
// names.
func DecodeFrame(data []byte) (Kind, []byte, error) {
	var f Frame
	if err := Decode(data, &f); err != nil {
		return 0, nil, err
	}
	return f.Kind, f.Body, nil
}

var mh codec.MsgpackHandle

// Encode msgpack-encodes v using the shared handle; every concrete message
// type in this package round-trips through it.
func Encode(v any) ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, &mh)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode msgpack-decodes data into v, the inverse of Encode.
func Decode(data []byte, v any) error {
	dec := codec.NewDecoderBytes(data, &mh)
	return dec.Decode(v)
}
