package memstore_test

import (
	"testing"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/storage"
	"github.com/AbyelT/omnipaxos/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndGetEntries(t *testing.T) {
	s := memstore.New[string, string]()
	_, err := s.AppendEntries([]string{"a", "b", "c"})
	require.NoError(t, err)

	entries, err := s.GetEntries(0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, entries)

	length, err := s.GetLogLen()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), length)
}

func TestGetEntriesOutOfRangeIsEmptyNotError(t *testing.T) {
	s := memstore.New[string, string]()
	_, err := s.AppendEntries([]string{"a", "b"})
	require.NoError(t, err)

	entries, err := s.GetEntries(5, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrimPreservesAbsoluteIndexing(t *testing.T) {
	s := memstore.New[string, string]()
	var want []string
	for i := 0; i < 10; i++ {
		want = append(want, string(rune('a'+i)))
	}
	_, err := s.AppendEntries(want)
	require.NoError(t, err)

	require.NoError(t, s.Trim(4))

	length, err := s.GetLogLen()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), length, "log length stays absolute across a trim")

	suffix, err := s.GetSuffix(4)
	require.NoError(t, err)
	assert.Equal(t, want[4:], suffix)

	entries, err := s.GetEntries(6, 9)
	require.NoError(t, err)
	assert.Equal(t, want[6:9], entries)

	trimmed, err := s.GetEntries(0, 4)
	require.NoError(t, err)
	assert.Empty(t, trimmed, "entries below the trim point are gone")
}

func TestAppendOnPrefixAfterTrim(t *testing.T) {
	s := memstore.New[string, string]()
	_, err := s.AppendEntries([]string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.NoError(t, s.Trim(2))

	_, err = s.AppendOnPrefix(3, []string{"X", "Y"})
	require.NoError(t, err)

	suffix, err := s.GetSuffix(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "X", "Y"}, suffix)
}

func TestPromiseAndAcceptedRoundRoundTrip(t *testing.T) {
	s := memstore.New[string, string]()
	b := ballot.Ballot{N: 3, Priority: 1, Pid: 7}
	require.NoError(t, s.SetPromise(b))
	got, err := s.GetPromise()
	require.NoError(t, err)
	assert.Equal(t, b, got)

	acc := ballot.Ballot{N: 2, Priority: 0, Pid: 4}
	require.NoError(t, s.SetAcceptedRound(acc))
	gotAcc, err := s.GetAcceptedRound()
	require.NoError(t, err)
	assert.Equal(t, acc, gotAcc)
	assert.NotEqual(t, got, gotAcc, "promise and accepted round are stored independently")
}

func TestStopSignRoundTrip(t *testing.T) {
	s := memstore.New[string, string]()
	entry := storage.StopSignEntry{
		StopSign: storage.StopSign{ConfigID: 2, Nodes: []uint64{1, 2, 3}},
		Decided:  false,
	}
	require.NoError(t, s.SetStopSign(entry))

	got, err := s.GetStopSign()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.StopSign.Equal(entry.StopSign))
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := memstore.New[string, string]()
	got, err := s.GetSnapshot()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.SetSnapshot("compacted-state"))
	got, err = s.GetSnapshot()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "compacted-state", *got)
}
