// Package sequencepaxos implements the log-replication half of the
// engine: leader-driven phase-1/phase-2 replication, decoupled entirely
// from leader election (see package ble). A SequencePaxos instance reads
// its leader assignment from a ble.Watch and otherwise only talks to its
// Storage and Transport.
package sequencepaxos

import (
	"context"
	"sync"
	"time"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/ble"
	"github.com/AbyelT/omnipaxos/message"
	"github.com/AbyelT/omnipaxos/storage"
	"github.com/AbyelT/omnipaxos/transport"
	"go.uber.org/zap"
)

// ctxBG is reused for the fire-and-forget sends on the protocol's hot
// path; none of them carry a caller-supplied deadline.
var ctxBG = context.Background()

// SequencePaxos runs one replica's log-replication loop. Construct with
// New, run Run in its own goroutine, and drive it via Append/Read/etc.
type SequencePaxos[T any, S any] struct {
	cfg     Config[T, S]
	logger  *zap.SugaredLogger
	trans   transport.Transport
	storage *storage.CachedState[T, S]
	leader  *ble.Watch
	snap    storage.SnapshotHandler[T, S]

	mu   sync.Mutex // guards everything below, touched only from Run's goroutine and Append/Read's blocking handoff
	role Role

	myBallot ballot.Ballot // the ballot this node is attempting to lead under; zero until a Prepare is sent

	promises    map[uint64]message.Promise[T, S]
	acceptedLen map[uint64]uint64
	pending     []T // client entries queued while PrepareLeader, flushed once AcceptLeader

	ssAcked map[uint64]bool

	waiters []readWaiter[T]

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	appendCh    chan appendRequest[T]
	readCh      chan readRequest[T]
	readRangeCh chan readRangeRequest[T]
	reconfigCh  chan reconfigRequest
	snapshotCh  chan snapshotRequest
	trimCh      chan trimRequest
}

// New validates cfg and wires backend/transport/leader-watch together.
// Storage is assumed already open; SP owns it exclusively from here on.
func New[T any, S any](
	cfg Config[T, S], backend storage.Storage[T, S], trans transport.Transport, leader *ble.Watch, logger *zap.SugaredLogger,
) (*SequencePaxos[T, S], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cached, err := storage.NewCachedState[T, S](backend)
	if err != nil {
		return nil, storageFault(err)
	}
	snap := cfg.SnapshotHandler
	if snap == nil {
		snap = storage.NoSnapshot[T, S]{}
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &SequencePaxos[T, S]{
		cfg:         cfg,
		logger:      logger,
		trans:       trans,
		storage:     cached,
		leader:      leader,
		snap:        snap,
		role:        Follower,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		appendCh:    make(chan appendRequest[T], bufferSize),
		readCh:      make(chan readRequest[T], bufferSize),
		readRangeCh: make(chan readRangeRequest[T], bufferSize),
		reconfigCh:  make(chan reconfigRequest, bufferSize),
		snapshotCh:  make(chan snapshotRequest, bufferSize),
		trimCh:      make(chan trimRequest, bufferSize),
	}, nil
}

// Run drives the event loop until Stop is called.
func (sp *SequencePaxos[T, S]) Run() {
	defer close(sp.doneCh)
	for {
		select {
		case <-sp.stopCh:
			return
		case req := <-sp.appendCh:
			sp.mu.Lock()
			sp.handleAppend(req)
			sp.mu.Unlock()
		case req := <-sp.readCh:
			sp.mu.Lock()
			sp.handleRead(req)
			sp.mu.Unlock()
		case req := <-sp.readRangeCh:
			sp.mu.Lock()
			sp.handleReadRange(req)
			sp.mu.Unlock()
		case req := <-sp.reconfigCh:
			sp.mu.Lock()
			sp.handleReconfigure(req)
			sp.mu.Unlock()
		case req := <-sp.snapshotCh:
			sp.mu.Lock()
			sp.handleSnapshot(req)
			sp.mu.Unlock()
		case req := <-sp.trimCh:
			sp.mu.Lock()
			sp.handleTrim(req)
			sp.mu.Unlock()
		case env := <-sp.trans.Inbox():
			sp.mu.Lock()
			sp.handleEnvelope(env)
			sp.mu.Unlock()
		case <-sp.leader.Notify():
			sp.mu.Lock()
			sp.handleLeaderChange()
			sp.mu.Unlock()
		}
	}
}

// Stop signals the loop to exit and blocks until it does, or timeout
// elapses first — whichever comes sooner, no further durable writes are
// attempted once the deadline passes.
func (sp *SequencePaxos[T, S]) Stop(timeout time.Duration) {
	sp.stopOnce.Do(func() { close(sp.stopCh) })
	select {
	case <-sp.doneCh:
	case <-time.After(timeout):
	}
}

func (sp *SequencePaxos[T, S]) handleLeaderChange() {
	elected := sp.leader.Current()
	if elected.Equal(ballot.Default()) {
		return
	}
	if elected.Pid == sp.cfg.Pid {
		if elected.Greater(sp.storage.GetPromise()) || (elected.Equal(sp.storage.GetPromise()) && sp.role == Follower) {
			sp.becomeLeader(elected)
		}
		return
	}
	// Someone else was elected: step down bookkeeping happens lazily when
	// their Prepare/AcceptSync actually arrives and carries a higher ballot.
	if sp.role != Follower && elected.Greater(sp.myBallot) {
		sp.role = Follower
	}
}

func (sp *SequencePaxos[T, S]) handleEnvelope(env transport.Envelope) {
	kind, body, err := message.DecodeFrame(env.Payload)
	if err != nil {
		sp.logger.Debugw("failed to decode frame", "error", err)
		return
	}
	switch kind {
	case message.KindPrepare:
		var m message.Prepare
		if err := message.Decode(body, &m); err == nil {
			sp.handlePrepare(env.From, m)
		}
	case message.KindPromise:
		var m message.Promise[T, S]
		if err := message.Decode(body, &m); err == nil {
			sp.handlePromise(env.From, m)
		}
	case message.KindAcceptSync:
		var m message.AcceptSync[T]
		if err := message.Decode(body, &m); err == nil {
			sp.handleAcceptSync(env.From, m)
		}
	case message.KindAccept:
		var m message.Accept[T]
		if err := message.Decode(body, &m); err == nil {
			sp.handleAccept(env.From, m)
		}
	case message.KindAccepted:
		var m message.Accepted
		if err := message.Decode(body, &m); err == nil {
			sp.handleAccepted(env.From, m)
		}
	case message.KindAcceptStopSign:
		var m message.AcceptStopSign
		if err := message.Decode(body, &m); err == nil {
			sp.handleAcceptStopSign(env.From, m)
		}
	case message.KindAcceptedStopSign:
		var m message.AcceptedStopSign
		if err := message.Decode(body, &m); err == nil {
			sp.handleAcceptedStopSign(env.From, m)
		}
	case message.KindDecide:
		var m message.Decide
		if err := message.Decode(body, &m); err == nil {
			sp.handleDecide(m)
		}
	case message.KindDecideStopSign:
		var m message.DecideStopSign
		if err := message.Decode(body, &m); err == nil {
			sp.handleDecideStopSign(m)
		}
	case message.KindCompaction:
		var m message.Compaction[S]
		if err := message.Decode(body, &m); err == nil {
			sp.handleCompactionMsg(m)
		}
	case message.KindForwardAppend:
		var m message.ForwardAppend[T]
		if err := message.Decode(body, &m); err == nil {
			sp.handleForwardAppend(m)
		}
	default:
		// Not ours; the transport may be shared with BLE.
	}
}

func (sp *SequencePaxos[T, S]) send(ctx context.Context, to uint64, kind message.Kind, v any) {
	payload, err := message.EncodeFrame(kind, v)
	if err != nil {
		sp.logger.Debugw("failed to encode outgoing message", "kind", kind.String(), "error", err)
		return
	}
	if err := sp.trans.Send(ctx, to, payload); err != nil {
		sp.logger.Debugw("send failed", "kind", kind.String(), "to", to, "error", err)
	}
}

func (sp *SequencePaxos[T, S]) broadcast(kind message.Kind, v any) {
	payload, err := message.EncodeFrame(kind, v)
	if err != nil {
		sp.logger.Debugw("failed to encode outgoing message", "kind", kind.String(), "error", err)
		return
	}
	ctx := context.Background()
	for _, peer := range sp.cfg.Peers {
		if err := sp.trans.Send(ctx, peer, payload); err != nil {
			sp.logger.Debugw("broadcast send failed", "kind", kind.String(), "to", peer, "error", err)
		}
	}
}

func (sp *SequencePaxos[T, S]) fail(err error) {
	sp.logger.Errorw("storage fault aborted current ballot", "error", err)
}
