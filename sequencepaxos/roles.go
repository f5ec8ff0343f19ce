package sequencepaxos

// Role is SP's local view of its part in the current ballot. Transitions
// are driven solely by comparing the locally-durable promise against the
// ballot observed from BLE's watch and from peer messages.
type Role int

const (
	// Follower replicates under whatever ballot it last promised.
	Follower Role = iota
	// PrepareLeader has taken on a higher ballot and broadcast Prepare,
	// but has not yet collected a promise quorum.
	PrepareLeader
	// AcceptLeader has completed phase 1 and replicates client appends.
	AcceptLeader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "Follower"
	case PrepareLeader:
		return "PrepareLeader"
	case AcceptLeader:
		return "AcceptLeader"
	default:
		return "Unknown"
	}
}
