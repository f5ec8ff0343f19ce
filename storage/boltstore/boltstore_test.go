package boltstore_test

import (
	"path/filepath"
	"testing"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/storage/boltstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *boltstore.BoltStorage[string, string] {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	db, err := boltstore.Open[string, string](path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAppendAndReadBackEntries(t *testing.T) {
	db := open(t)
	_, err := db.AppendEntries([]string{"a", "b", "c"})
	require.NoError(t, err)

	entries, err := db.GetEntries(0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, entries)
}

func TestPromiseAndAcceptedRoundDoNotAlias(t *testing.T) {
	db := open(t)

	prom := ballot.Ballot{N: 5, Priority: 1, Pid: 2}
	acc := ballot.Ballot{N: 3, Priority: 0, Pid: 9}
	require.NoError(t, db.SetPromise(prom))
	require.NoError(t, db.SetAcceptedRound(acc))

	gotProm, err := db.GetPromise()
	require.NoError(t, err)
	gotAcc, err := db.GetAcceptedRound()
	require.NoError(t, err)

	assert.Equal(t, prom, gotProm)
	assert.Equal(t, acc, gotAcc)
	assert.NotEqual(t, gotProm, gotAcc, "promise and accepted round must live under distinct keys")
}

func TestTrimDeletesBelowIdxOnly(t *testing.T) {
	db := open(t)
	_, err := db.AppendEntries([]string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.NoError(t, db.Trim(2))

	length, err := db.GetLogLen()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), length)

	suffix, err := db.GetSuffix(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e"}, suffix)

	gone, err := db.GetEntries(0, 2)
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestReopenRecoversState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	db, err := boltstore.Open[string, string](path)
	require.NoError(t, err)
	_, err = db.AppendEntries([]string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, db.SetDecidedIdx(1))
	require.NoError(t, db.Close())

	reopened, err := boltstore.Open[string, string](path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.GetEntries(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, entries)

	ld, err := reopened.GetDecidedIdx()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ld)
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := open(t)
	got, err := db.GetSnapshot()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.SetSnapshot("snap-1"))
	got, err = db.GetSnapshot()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "snap-1", *got)
}
