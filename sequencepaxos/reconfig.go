package sequencepaxos

import (
	"context"

	"github.com/AbyelT/omnipaxos/message"
	"github.com/AbyelT/omnipaxos/storage"
)

type reconfigRequest struct {
	nodes    []uint64
	metadata []byte
	respCh   chan error
}

// Reconfigure proposes closing the current configuration in favor of a
// successor running on nodes. Only the current leader accepts the
// request; followers return ErrConfigError so the caller can retry
// against whoever CurrentLeader names.
func (sp *SequencePaxos[T, S]) Reconfigure(ctx context.Context, nodes []uint64, metadata []byte) error {
	respCh := make(chan error, 1)
	select {
	case sp.reconfigCh <- reconfigRequest{nodes: nodes, metadata: metadata, respCh: respCh}:
	case <-ctx.Done():
		return ctx.Err()
	case <-sp.doneCh:
		return ErrStopped
	}
	select {
	case err := <-respCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-sp.doneCh:
		return ErrStopped
	}
}

func (sp *SequencePaxos[T, S]) handleReconfigure(req reconfigRequest) {
	if sp.role != AcceptLeader {
		req.respCh <- ErrConfigError
		return
	}
	if existing, err := sp.storage.GetStopSign(); err != nil {
		req.respCh <- storageFault(err)
		return
	} else if existing != nil {
		req.respCh <- ErrStopped
		return
	}

	ss := storage.StopSignEntry{
		StopSign: storage.StopSign{ConfigID: sp.cfg.ConfigID, Nodes: req.nodes, Metadata: req.metadata},
		Decided:  false,
	}
	if err := sp.storage.SetStopSign(ss); err != nil {
		req.respCh <- storageFault(err)
		return
	}
	sp.ssAcked = map[uint64]bool{sp.cfg.Pid: true}
	sp.broadcast(message.KindAcceptStopSign, message.AcceptStopSign{Ballot: sp.myBallot, StopSign: ss.StopSign})
	req.respCh <- nil
}

// handleAcceptStopSign durably records a leader-proposed stop-sign and
// acknowledges it, mirroring the Accept/Accepted exchange used for
// ordinary entries.
func (sp *SequencePaxos[T, S]) handleAcceptStopSign(from uint64, m message.AcceptStopSign) {
	if !m.Ballot.Equal(sp.storage.GetPromise()) {
		return
	}
	if err := sp.storage.SetStopSign(storage.StopSignEntry{StopSign: m.StopSign, Decided: false}); err != nil {
		sp.fail(storageFault(err))
		return
	}
	sp.send(ctxBG, from, message.KindAcceptedStopSign, message.AcceptedStopSign{Ballot: m.Ballot})
}

// handleAcceptedStopSign tracks acknowledgements of a proposed stop-sign
// and, once a quorum has durably stored it, decides it.
func (sp *SequencePaxos[T, S]) handleAcceptedStopSign(from uint64, m message.AcceptedStopSign) {
	if sp.role != AcceptLeader || !m.Ballot.Equal(sp.myBallot) {
		return
	}
	sp.ssAcked[from] = true
	if len(sp.ssAcked) < sp.cfg.quorum() {
		return
	}
	ss, err := sp.storage.GetStopSign()
	if err != nil {
		sp.fail(storageFault(err))
		return
	}
	if ss == nil || ss.Decided {
		return
	}
	ss.Decided = true
	if err := sp.storage.SetStopSign(*ss); err != nil {
		sp.fail(storageFault(err))
		return
	}
	sp.broadcast(message.KindDecideStopSign, message.DecideStopSign{Ballot: sp.myBallot})
}

// handleDecideStopSign marks a follower's already-accepted stop-sign as
// decided, closing the configuration for good.
func (sp *SequencePaxos[T, S]) handleDecideStopSign(m message.DecideStopSign) {
	if !m.Ballot.Equal(sp.storage.GetPromise()) {
		return
	}
	ss, err := sp.storage.GetStopSign()
	if err != nil {
		sp.fail(storageFault(err))
		return
	}
	if ss == nil || ss.Decided {
		return
	}
	ss.Decided = true
	if err := sp.storage.SetStopSign(*ss); err != nil {
		sp.fail(storageFault(err))
	}
}
