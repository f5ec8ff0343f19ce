package sequencepaxos

import (
	"sort"

	"github.com/AbyelT/omnipaxos/message"
)

// handleAcceptSync installs the leader's reconciled suffix as a follower's
// own log, replacing anything from FromIdx onward, then acknowledges with
// Accepted carrying the resulting length (preceded by AcceptedStopSign when
// the sync carries a stop-sign).
func (sp *SequencePaxos[T, S]) handleAcceptSync(from uint64, m message.AcceptSync[T]) {
	if !m.Ballot.Equal(sp.storage.GetPromise()) {
		return
	}
	sp.role = Follower
	sp.myBallot = m.Ballot

	newLen, err := sp.storage.AppendOnPrefix(m.FromIdx, m.Suffix)
	if err != nil {
		sp.fail(storageFault(err))
		return
	}
	if err := sp.storage.SetAcceptedRound(m.Ballot); err != nil {
		sp.fail(storageFault(err))
		return
	}
	if m.DecidedIdx > sp.storage.GetDecidedIdx() {
		if err := sp.storage.SetDecidedIdx(m.DecidedIdx); err != nil {
			sp.fail(storageFault(err))
			return
		}
	}
	if m.StopSign != nil {
		if err := sp.storage.SetStopSign(*m.StopSign); err != nil {
			sp.fail(storageFault(err))
			return
		}
		sp.send(ctxBG, from, message.KindAcceptedStopSign, message.AcceptedStopSign{Ballot: m.Ballot})
	}
	sp.send(ctxBG, from, message.KindAccepted, message.Accepted{Ballot: m.Ballot, NewLen: newLen})
}

// handleAccept overwrites the follower's log from FromIdx with Entries and
// acknowledges with the resulting length.
func (sp *SequencePaxos[T, S]) handleAccept(from uint64, m message.Accept[T]) {
	if !m.Ballot.Equal(sp.storage.GetPromise()) || sp.role != Follower {
		return
	}
	newLen, err := sp.storage.AppendOnPrefix(m.FromIdx, m.Entries)
	if err != nil {
		sp.fail(storageFault(err))
		return
	}
	sp.send(ctxBG, from, message.KindAccepted, message.Accepted{Ballot: m.Ballot, NewLen: newLen})
}

// handleAccepted records a follower's acknowledged length and, once a write
// quorum agrees on a length, advances ld and broadcasts Decide.
func (sp *SequencePaxos[T, S]) handleAccepted(from uint64, m message.Accepted) {
	if sp.role != AcceptLeader || !m.Ballot.Equal(sp.myBallot) {
		return
	}
	if sp.acceptedLen[from] < m.NewLen {
		sp.acceptedLen[from] = m.NewLen
	}
	sp.maybeDecide()
}

// maybeDecide picks the quorum-th highest acknowledged length (the
// greatest length a write quorum of replicas is known to hold) and, if it
// exceeds the currently decided index, durably advances ld and broadcasts
// Decide.
func (sp *SequencePaxos[T, S]) maybeDecide() {
	lengths := make([]uint64, 0, len(sp.acceptedLen))
	for _, l := range sp.acceptedLen {
		lengths = append(lengths, l)
	}
	if len(lengths) < sp.cfg.quorum() {
		return
	}
	sort.Slice(lengths, func(i, j int) bool { return lengths[i] > lengths[j] })
	quorumLen := lengths[sp.cfg.quorum()-1]

	if quorumLen <= sp.storage.GetDecidedIdx() {
		return
	}
	if err := sp.storage.SetDecidedIdx(quorumLen); err != nil {
		sp.fail(storageFault(err))
		return
	}
	sp.broadcast(message.KindDecide, message.Decide{Ballot: sp.myBallot, DecidedIdx: quorumLen})
	sp.wakeReaders()
}

// handleDecide advances a follower's ld to whatever the leader reports,
// provided the decide is for the ballot currently promised. Decided
// indexes only ever move forward.
func (sp *SequencePaxos[T, S]) handleDecide(m message.Decide) {
	if !m.Ballot.Equal(sp.storage.GetPromise()) {
		return
	}
	if m.DecidedIdx <= sp.storage.GetDecidedIdx() {
		return
	}
	if err := sp.storage.SetDecidedIdx(m.DecidedIdx); err != nil {
		sp.fail(storageFault(err))
		return
	}
	sp.wakeReaders()
}
