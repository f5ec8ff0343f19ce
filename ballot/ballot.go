// Package ballot implements the totally ordered round identifiers shared by
// Ballot Leader Election and Sequence Paxos.
package ballot

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Ballot is a totally ordered (n, priority, pid) tuple. Comparison is
// lexicographic: n dominates, priority breaks ties, pid breaks what remains.
type Ballot struct {
	N        uint64
	Priority uint64
	Pid      uint64
}

// Default returns the minimum ballot in the order, used as the zero value
// for n_prom/acc_round before any round has been observed.
func Default() Ballot {
	return Ballot{}
}

// Less reports whether b is strictly ordered before other.
func (b Ballot) Less(other Ballot) bool {
	if b.N != other.N {
		return b.N < other.N
	}
	if b.Priority != other.Priority {
		return b.Priority < other.Priority
	}
	return b.Pid < other.Pid
}

// Greater reports whether b is strictly ordered after other.
func (b Ballot) Greater(other Ballot) bool {
	return other.Less(b)
}

// GreaterOrEqual reports whether b is ordered at or after other.
func (b Ballot) GreaterOrEqual(other Ballot) bool {
	return !b.Less(other)
}

// Equal reports whether b and other occupy the same position in the order.
func (b Ballot) Equal(other Ballot) bool {
	return b == other
}

// Max returns the greater of a and b.
func Max(a, b Ballot) Ballot {
	if a.Less(b) {
		return b
	}
	return a
}

func (b Ballot) String() string {
	return fmt.Sprintf("Ballot{n:%d priority:%d pid:%d}", b.N, b.Priority, b.Pid)
}

// MarshalLogObject implements zapcore.ObjectMarshaler so ballots can be
// attached to structured log lines cheaply.
func (b Ballot) MarshalLogObject(e zapcore.ObjectEncoder) error {
	e.AddUint64("n", b.N)
	e.AddUint64("priority", b.Priority)
	e.AddUint64("pid", b.Pid)
	return nil
}
