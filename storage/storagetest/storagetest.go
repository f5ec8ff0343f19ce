// Package storagetest is a shared conformance suite exercised against every
// storage.Storage backend, so memstore and boltstore are held to the same
// contract instead of each growing its own ad-hoc test set.
package storagetest

import (
	"testing"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory constructs a fresh, empty backend for each subtest.
type Factory func() storage.Storage[string, string]

// RunConformanceSuite runs the shared Storage contract tests against
// whatever backend factory produces.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("EmptyBackendDefaults", func(t *testing.T) {
		s := factory()
		prom, err := s.GetPromise()
		require.NoError(t, err)
		assert.Equal(t, ballot.Default(), prom)

		length, err := s.GetLogLen()
		require.NoError(t, err)
		assert.Zero(t, length)

		ss, err := s.GetStopSign()
		require.NoError(t, err)
		assert.Nil(t, ss)

		snap, err := s.GetSnapshot()
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("AppendEntriesIsAbsoluteIndexed", func(t *testing.T) {
		s := factory()
		_, err := s.AppendEntries([]string{"a", "b", "c"})
		require.NoError(t, err)

		entries, err := s.GetEntries(1, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, entries)
	})

	t.Run("AppendOnPrefixOverwritesTail", func(t *testing.T) {
		s := factory()
		_, err := s.AppendEntries([]string{"a", "b", "c", "d"})
		require.NoError(t, err)

		_, err = s.AppendOnPrefix(2, []string{"X", "Y", "Z"})
		require.NoError(t, err)

		entries, err := s.GetEntries(0, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "X", "Y", "Z"}, entries)
	})

	t.Run("OutOfRangeReadsAreEmptyNotError", func(t *testing.T) {
		s := factory()
		_, err := s.AppendEntries([]string{"a"})
		require.NoError(t, err)

		entries, err := s.GetEntries(10, 20)
		require.NoError(t, err)
		assert.Empty(t, entries)

		suffix, err := s.GetSuffix(100)
		require.NoError(t, err)
		assert.Empty(t, suffix)
	})

	t.Run("PromiseAndAcceptedRoundAreIndependent", func(t *testing.T) {
		s := factory()
		prom := ballot.Ballot{N: 4, Priority: 1, Pid: 2}
		acc := ballot.Ballot{N: 2, Priority: 0, Pid: 9}
		require.NoError(t, s.SetPromise(prom))
		require.NoError(t, s.SetAcceptedRound(acc))

		gotProm, err := s.GetPromise()
		require.NoError(t, err)
		gotAcc, err := s.GetAcceptedRound()
		require.NoError(t, err)

		assert.Equal(t, prom, gotProm)
		assert.Equal(t, acc, gotAcc)
	})

	t.Run("DecidedIdxRoundTrips", func(t *testing.T) {
		s := factory()
		require.NoError(t, s.SetDecidedIdx(7))
		ld, err := s.GetDecidedIdx()
		require.NoError(t, err)
		assert.Equal(t, uint64(7), ld)
	})

	t.Run("TrimKeepsIndicesAbsolute", func(t *testing.T) {
		s := factory()
		_, err := s.AppendEntries([]string{"a", "b", "c", "d", "e"})
		require.NoError(t, err)
		require.NoError(t, s.Trim(3))

		length, err := s.GetLogLen()
		require.NoError(t, err)
		assert.Equal(t, uint64(5), length, "log length stays absolute across a trim")

		suffix, err := s.GetSuffix(3)
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "e"}, suffix)

		gone, err := s.GetEntries(0, 3)
		require.NoError(t, err)
		assert.Empty(t, gone)
	})

	t.Run("CompactedIdxRoundTrips", func(t *testing.T) {
		s := factory()
		require.NoError(t, s.SetCompactedIdx(5))
		idx, err := s.GetCompactedIdx()
		require.NoError(t, err)
		assert.Equal(t, uint64(5), idx)
	})

	t.Run("StopSignRoundTripsIgnoringMetadataInEquality", func(t *testing.T) {
		s := factory()
		entry := storage.StopSignEntry{
			StopSign: storage.StopSign{ConfigID: 3, Nodes: []uint64{1, 2, 3}, Metadata: []byte("hint-a")},
		}
		require.NoError(t, s.SetStopSign(entry))

		got, err := s.GetStopSign()
		require.NoError(t, err)
		require.NotNil(t, got)

		other := entry.StopSign
		other.Metadata = []byte("hint-b")
		assert.True(t, got.StopSign.Equal(other))
	})

	t.Run("SnapshotRoundTrips", func(t *testing.T) {
		s := factory()
		require.NoError(t, s.SetSnapshot("compacted"))
		got, err := s.GetSnapshot()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "compacted", *got)
	})
}
