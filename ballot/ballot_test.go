package ballot_test

import (
	"testing"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdering(t *testing.T) {
	low := ballot.Ballot{N: 1, Priority: 0, Pid: 2}
	high := ballot.Ballot{N: 2, Priority: 0, Pid: 1}
	require.True(t, low.Less(high))
	require.True(t, high.Greater(low))
	require.False(t, high.Less(low))
}

func TestPriorityTieBreak(t *testing.T) {
	a := ballot.Ballot{N: 5, Priority: 1, Pid: 3}
	b := ballot.Ballot{N: 5, Priority: 2, Pid: 1}
	assert.True(t, a.Less(b), "higher priority should win when n is equal")
}

func TestPidTieBreak(t *testing.T) {
	a := ballot.Ballot{N: 5, Priority: 1, Pid: 3}
	b := ballot.Ballot{N: 5, Priority: 1, Pid: 7}
	assert.True(t, a.Less(b))
}

func TestDefaultIsMinimum(t *testing.T) {
	d := ballot.Default()
	other := ballot.Ballot{N: 1, Priority: 0, Pid: 1}
	assert.True(t, d.Less(other))
	assert.True(t, d.GreaterOrEqual(ballot.Default()))
}

func TestMax(t *testing.T) {
	a := ballot.Ballot{N: 3, Pid: 1}
	b := ballot.Ballot{N: 4, Pid: 1}
	assert.Equal(t, b, ballot.Max(a, b))
	assert.Equal(t, b, ballot.Max(b, a))
}
