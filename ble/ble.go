// Package ble implements Ballot Leader Election: a heartbeat-driven
// election that hands Sequence Paxos a monotonically-improving leader
// ballot over a watch cell, decoupled entirely from log replication.
package ble

import (
	"context"
	"sync"
	"time"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/message"
	"github.com/AbyelT/omnipaxos/transport"
	"go.uber.org/zap"
)

// BLE runs one node's heartbeat election loop. Construct with New, then
// run Run in its own goroutine; stop with Stop.
type BLE struct {
	cfg    Config
	trans  transport.Transport
	logger *zap.SugaredLogger
	watch  *Watch

	round    uint64
	myBallot ballot.Ballot
	lastSeen map[uint64]time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New validates cfg and constructs a BLE instance ready to Run.
func New(cfg Config, trans transport.Transport, logger *zap.SugaredLogger) (*BLE, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	initial := cfg.InitialLeader
	myBallot := ballot.Ballot{N: 0, Priority: cfg.Priority, Pid: cfg.Pid}
	if !initial.Equal(ballot.Default()) && initial.Pid == cfg.Pid {
		myBallot = initial
	}
	return &BLE{
		cfg:      cfg,
		trans:    trans,
		logger:   logger,
		watch:    newWatch(initial),
		myBallot: myBallot,
		lastSeen: make(map[uint64]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch exposes the leader cell SP consumes.
func (b *BLE) Watch() *Watch {
	return b.watch
}

// Run drives the election loop until Stop is called. Intended to run in
// its own goroutine; returns once the stop signal has been drained.
func (b *BLE) Run() {
	defer close(b.doneCh)

	firstTick := b.cfg.InitialLeaderTimeout
	if firstTick <= 0 {
		firstTick = b.cfg.HBDelay
	}
	timer := time.NewTimer(firstTick)
	defer timer.Stop()

	candidates := make(map[uint64]ballot.Ballot)

	for {
		select {
		case <-b.stopCh:
			return
		case <-timer.C:
			b.tick(candidates)
			candidates = make(map[uint64]ballot.Ballot)
			timer.Reset(b.cfg.HBDelay)
		case env := <-b.trans.Inbox():
			b.handleEnvelope(env, candidates)
		}
	}
}

// Stop signals the loop to exit and blocks until it does or timeout
// elapses, whichever is first.
func (b *BLE) Stop(timeout time.Duration) {
	b.stopOnce.Do(func() { close(b.stopCh) })
	select {
	case <-b.doneCh:
	case <-time.After(timeout):
	}
}

func (b *BLE) tick(candidates map[uint64]ballot.Ballot) {
	candidates[b.cfg.Pid] = b.myBallot
	if len(candidates) >= b.cfg.quorum() {
		elected := ballot.Default()
		for _, c := range candidates {
			elected = ballot.Max(elected, c)
		}
		b.maybeElect(elected)
	}
	b.round++
	b.broadcast()
}

// maybeElect publishes elected on the watch if it differs from the
// current value. When this node is newly becoming leader (the previous
// leader was someone else, or no one), its own ballot number is bumped
// first so the new leadership term carries a fresh, strictly higher
// epoch rather than replaying a stale one.
func (b *BLE) maybeElect(elected ballot.Ballot) {
	current := b.watch.Current()
	if elected.Equal(current) {
		return
	}
	if elected.Pid == b.cfg.Pid && current.Pid != b.cfg.Pid {
		b.myBallot.N++
		elected = b.myBallot
	}
	b.watch.set(elected)
}

func (b *BLE) broadcast() {
	payload, err := message.EncodeFrame(message.KindHBRequest, message.HBRequest{Round: b.round})
	if err != nil {
		b.logger.Debugw("failed to encode heartbeat request", "error", err)
		return
	}
	for _, peer := range b.cfg.Peers {
		peer := peer
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), b.cfg.HBDelay)
			defer cancel()
			if err := b.trans.Send(ctx, peer, payload); err != nil {
				b.logger.Debugw("heartbeat request send failed", "peer", peer, "error", err)
			}
		}()
	}
}

func (b *BLE) handleEnvelope(env transport.Envelope, candidates map[uint64]ballot.Ballot) {
	kind, body, err := message.DecodeFrame(env.Payload)
	if err != nil {
		return
	}
	switch kind {
	case message.KindHBRequest:
		var req message.HBRequest
		if err := message.Decode(body, &req); err != nil {
			b.logger.Debugw("failed to decode heartbeat request", "error", err)
			return
		}
		b.lastSeen[env.From] = time.Now()
		b.replyTo(env.From, req)
	case message.KindHBReply:
		var reply message.HBReply
		if err := message.Decode(body, &reply); err != nil {
			b.logger.Debugw("failed to decode heartbeat reply", "error", err)
			return
		}
		b.lastSeen[env.From] = time.Now()
		if reply.Round == b.round {
			candidates[env.From] = reply.Ballot
		}
	default:
		// Not a BLE message; the transport may be shared with SP.
	}
}

func (b *BLE) replyTo(to uint64, req message.HBRequest) {
	reply := message.HBReply{
		Round:           req.Round,
		Ballot:          b.myBallot,
		QuorumConnected: b.connectedCount()+1 >= b.cfg.quorum(),
	}
	payload, err := message.EncodeFrame(message.KindHBReply, reply)
	if err != nil {
		b.logger.Debugw("failed to encode heartbeat reply", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.HBDelay)
	defer cancel()
	if err := b.trans.Send(ctx, to, payload); err != nil {
		b.logger.Debugw("heartbeat reply send failed", "to", to, "error", err)
	}
}

func (b *BLE) connectedCount() int {
	threshold := time.Now().Add(-2 * b.cfg.HBDelay)
	n := 0
	for _, t := range b.lastSeen {
		if t.After(threshold) {
			n++
		}
	}
	return n
}
