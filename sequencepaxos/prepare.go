package sequencepaxos

import (
	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/message"
)

// becomeLeader durably promises b, enters PrepareLeader, and broadcasts
// Prepare to every peer. Called when BLE elects this node under a ballot
// strictly greater than (or freshly equal to, on a first election) its
// current promise.
func (sp *SequencePaxos[T, S]) becomeLeader(b ballot.Ballot) {
	if err := sp.storage.SetPromise(b); err != nil {
		sp.fail(storageFault(err))
		return
	}
	sp.myBallot = b
	sp.role = PrepareLeader
	sp.promises = map[uint64]message.Promise[T, S]{sp.cfg.Pid: sp.buildPromise(b)}

	ld := sp.storage.GetDecidedIdx()
	accRound := sp.storage.GetAcceptedRound()
	sp.broadcast(message.KindPrepare, message.Prepare{Ballot: b, LdSender: ld, AcceptedRound: accRound})

	sp.maybeCompletePrepare()
}

func (sp *SequencePaxos[T, S]) buildPromise(b ballot.Ballot) message.Promise[T, S] {
	accRound := sp.storage.GetAcceptedRound()
	ld := sp.storage.GetDecidedIdx()
	suffix, _ := sp.storage.GetSuffix(ld)
	ss, _ := sp.storage.GetStopSign()
	return message.Promise[T, S]{
		Ballot:        b,
		AcceptedRound: accRound,
		DecidedIdx:    ld,
		Suffix:        suffix,
		StopSign:      ss,
	}
}

// handlePrepare answers a leader candidate's Prepare. A strictly higher
// ballot moves this node to Follower under it; an equal-or-lower ballot is
// ignored (already promised at least that high).
func (sp *SequencePaxos[T, S]) handlePrepare(from uint64, m message.Prepare) {
	if !m.Ballot.Greater(sp.storage.GetPromise()) {
		return
	}
	if err := sp.storage.SetPromise(m.Ballot); err != nil {
		sp.fail(storageFault(err))
		return
	}
	sp.role = Follower
	sp.send(ctxBG, from, message.KindPromise, sp.buildPromise(m.Ballot))
}

// handlePromise records a Promise received while leading phase 1. Stale
// promises (answering an earlier ballot than the one currently being
// prepared) are dropped.
func (sp *SequencePaxos[T, S]) handlePromise(from uint64, m message.Promise[T, S]) {
	if sp.role != PrepareLeader || !m.Ballot.Equal(sp.myBallot) {
		return
	}
	sp.promises[from] = m
	sp.maybeCompletePrepare()
}

func (sp *SequencePaxos[T, S]) maybeCompletePrepare() {
	if sp.role != PrepareLeader || len(sp.promises) < sp.cfg.quorum() {
		return
	}
	winner := pickWinningPromise(sp.promises)
	ownTail := unchosenTail(sp.promises[sp.cfg.Pid], winner)

	if _, err := sp.storage.AppendOnPrefix(winner.DecidedIdx, winner.Suffix); err != nil {
		sp.fail(storageFault(err))
		return
	}
	if len(ownTail) > 0 {
		if _, err := sp.storage.AppendEntries(ownTail); err != nil {
			sp.fail(storageFault(err))
			return
		}
	}
	if err := sp.storage.SetAcceptedRound(sp.myBallot); err != nil {
		sp.fail(storageFault(err))
		return
	}
	if winner.DecidedIdx > sp.storage.GetDecidedIdx() {
		if err := sp.storage.SetDecidedIdx(winner.DecidedIdx); err != nil {
			sp.fail(storageFault(err))
			return
		}
	}
	if winner.StopSign != nil {
		if err := sp.storage.SetStopSign(*winner.StopSign); err != nil {
			sp.fail(storageFault(err))
			return
		}
	}

	sp.role = AcceptLeader
	length, _ := sp.storage.GetLogLen()
	sp.acceptedLen = map[uint64]uint64{sp.cfg.Pid: length}
	sp.ssAcked = map[uint64]bool{sp.cfg.Pid: true}

	ld := sp.storage.GetDecidedIdx()
	suffix, _ := sp.storage.GetSuffix(ld)
	ss, _ := sp.storage.GetStopSign()
	sp.broadcast(message.KindAcceptSync, message.AcceptSync[T]{
		Ballot:     sp.myBallot,
		Suffix:     suffix,
		FromIdx:    ld,
		DecidedIdx: ld,
		StopSign:   ss,
	})

	sp.flushPending()
}

// pickWinningPromise implements the max-(acc_round, length) suffix
// adoption rule: the promise whose accepted round is highest wins; ties
// break on whichever reports the longer total log.
func pickWinningPromise[T any, S any](promises map[uint64]message.Promise[T, S]) message.Promise[T, S] {
	var winner message.Promise[T, S]
	first := true
	for _, p := range promises {
		if first {
			winner = p
			first = false
			continue
		}
		pLen := p.DecidedIdx + uint64(len(p.Suffix))
		wLen := winner.DecidedIdx + uint64(len(winner.Suffix))
		if p.AcceptedRound.Greater(winner.AcceptedRound) ||
			(p.AcceptedRound.Equal(winner.AcceptedRound) && pLen > wLen) {
			winner = p
		}
	}
	return winner
}

// unchosenTail returns the entries own held beyond the length winner's
// suffix was adopted to, so a new leader re-proposes its own in-flight
// entries on top of the adopted suffix in FIFO order instead of silently
// dropping them. own and winner may be the same promise, in which case
// there is no tail to recover.
func unchosenTail[T any, S any](own, winner message.Promise[T, S]) []T {
	adoptedLen := winner.DecidedIdx + uint64(len(winner.Suffix))
	ownLen := own.DecidedIdx + uint64(len(own.Suffix))
	if ownLen <= adoptedLen || own.DecidedIdx > adoptedLen {
		return nil
	}
	offset := adoptedLen - own.DecidedIdx
	if offset >= uint64(len(own.Suffix)) {
		return nil
	}
	return own.Suffix[offset:]
}
