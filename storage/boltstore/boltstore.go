// Package boltstore is a durable Storage backend over go.etcd.io/bbolt.
// Log entries and snapshots are msgpack-encoded with ugorji/go/codec, the
// same encoding the teacher's own cmd/kv state machine uses for its
// snapshot format.
//
// Unlike the original Rust persistent_storage module, promise and
// accepted-round live under distinct keys (keyNProm vs keyAccRound):
// the original writes set_accepted_round to the same b"n_prom" key used
// for the promise, silently aliasing the two fields on disk.
package boltstore

import (
	"encoding/binary"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/storage"
	"github.com/ugorji/go/codec"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketLog  = []byte("log")
	bucketMeta = []byte("meta")

	keyNProm      = []byte("n_prom")
	keyAccRound   = []byte("acc_round")
	keyDecidedIdx = []byte("ld")
	keyTrimmedIdx = []byte("trimmed_idx")
	keyStopSign   = []byte("stopsign")
	keySnapshot   = []byte("snapshot")
)

var mh codec.MsgpackHandle

// BoltStorage implements storage.Storage[T,S] over a single bbolt file.
type BoltStorage[T any, S any] struct {
	db *bolt.DB
}

// Open opens (creating if needed) a bbolt-backed store at path, laying
// down the log and meta buckets on first use.
func Open[T any, S any](path string) (*BoltStorage[T, S], error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, storage.OpError(storage.StateError, "open", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketLog); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, storage.OpError(storage.StateError, "init-buckets", err)
	}
	return &BoltStorage[T, S]{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (b *BoltStorage[T, S]) Close() error {
	return b.db.Close()
}

func indexKey(idx uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, idx)
	return k
}

func encode(v any) ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, &mh)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

func decode(data []byte, v any) error {
	dec := codec.NewDecoderBytes(data, &mh)
	return dec.Decode(v)
}

// logLen derives the absolute log length from the last surviving key, or
// from the persisted compacted index when the bucket is empty. Trim does
// not write that index itself: a log trimmed empty reports idx as its
// length only once SetCompactedIdx(idx) has also been called.
func (b *BoltStorage[T, S]) logLen(tx *bolt.Tx) uint64 {
	c := tx.Bucket(bucketLog).Cursor()
	k, _ := c.Last()
	if k != nil {
		return binary.BigEndian.Uint64(k) + 1
	}
	raw := tx.Bucket(bucketMeta).Get(keyTrimmedIdx)
	if raw == nil {
		return 0
	}
	var idx uint64
	if err := decode(raw, &idx); err != nil {
		return 0
	}
	return idx
}

func (b *BoltStorage[T, S]) AppendEntry(entry T) (uint64, error) {
	return b.AppendEntries([]T{entry})
}

func (b *BoltStorage[T, S]) AppendEntries(entries []T) (uint64, error) {
	var newLen uint64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketLog)
		next := b.logLen(tx)
		for _, e := range entries {
			data, err := encode(e)
			if err != nil {
				return err
			}
			if err := bucket.Put(indexKey(next), data); err != nil {
				return err
			}
			next++
		}
		newLen = next
		return nil
	})
	if err != nil {
		return 0, storage.OpError(storage.LogError, "append-entries", err)
	}
	return newLen, nil
}

func (b *BoltStorage[T, S]) AppendOnPrefix(fromIdx uint64, entries []T) (uint64, error) {
	var newLen uint64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketLog)
		c := bucket.Cursor()
		for k, _ := c.Seek(indexKey(fromIdx)); k != nil; k, _ = c.Next() {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		next := fromIdx
		for _, e := range entries {
			data, err := encode(e)
			if err != nil {
				return err
			}
			if err := bucket.Put(indexKey(next), data); err != nil {
				return err
			}
			next++
		}
		newLen = next
		return nil
	})
	if err != nil {
		return 0, storage.OpError(storage.LogError, "append-on-prefix", err)
	}
	return newLen, nil
}

func (b *BoltStorage[T, S]) setMeta(key []byte, v any) error {
	data, err := encode(v)
	if err != nil {
		return storage.OpError(storage.StateError, "encode-meta", err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(key, data)
	})
	if err != nil {
		return storage.OpError(storage.StateError, "set-meta", err)
	}
	return nil
}

func (b *BoltStorage[T, S]) getMeta(key []byte, v any) (bool, error) {
	var found bool
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(key)
		if raw == nil {
			return nil
		}
		found = true
		data = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return false, storage.OpError(storage.StateError, "get-meta", err)
	}
	if !found {
		return false, nil
	}
	if err := decode(data, v); err != nil {
		return false, storage.OpError(storage.StateError, "decode-meta", err)
	}
	return true, nil
}

func (b *BoltStorage[T, S]) SetPromise(n ballot.Ballot) error {
	return b.setMeta(keyNProm, n)
}

func (b *BoltStorage[T, S]) GetPromise() (ballot.Ballot, error) {
	var n ballot.Ballot
	_, err := b.getMeta(keyNProm, &n)
	return n, err
}

func (b *BoltStorage[T, S]) SetAcceptedRound(na ballot.Ballot) error {
	return b.setMeta(keyAccRound, na)
}

func (b *BoltStorage[T, S]) GetAcceptedRound() (ballot.Ballot, error) {
	var na ballot.Ballot
	_, err := b.getMeta(keyAccRound, &na)
	return na, err
}

func (b *BoltStorage[T, S]) SetDecidedIdx(ld uint64) error {
	return b.setMeta(keyDecidedIdx, ld)
}

func (b *BoltStorage[T, S]) GetDecidedIdx() (uint64, error) {
	var ld uint64
	_, err := b.getMeta(keyDecidedIdx, &ld)
	return ld, err
}

func (b *BoltStorage[T, S]) GetEntries(from, to uint64) ([]T, error) {
	if from >= to {
		return []T{}, nil
	}
	out := make([]T, 0, to-from)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketLog)
		c := bucket.Cursor()
		for k, v := c.Seek(indexKey(from)); k != nil; k, v = c.Next() {
			if binary.BigEndian.Uint64(k) >= to {
				break
			}
			var e T
			if err := decode(v, &e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, storage.OpError(storage.LogError, "get-entries", err)
	}
	return out, nil
}

func (b *BoltStorage[T, S]) GetLogLen() (uint64, error) {
	var length uint64
	err := b.db.View(func(tx *bolt.Tx) error {
		length = b.logLen(tx)
		return nil
	})
	if err != nil {
		return 0, storage.OpError(storage.LogError, "get-log-len", err)
	}
	return length, nil
}

func (b *BoltStorage[T, S]) GetSuffix(from uint64) ([]T, error) {
	length, err := b.GetLogLen()
	if err != nil {
		return nil, err
	}
	if from >= length {
		return []T{}, nil
	}
	return b.GetEntries(from, length)
}

func (b *BoltStorage[T, S]) SetStopSign(s storage.StopSignEntry) error {
	return b.setMeta(keyStopSign, s)
}

func (b *BoltStorage[T, S]) GetStopSign() (*storage.StopSignEntry, error) {
	var s storage.StopSignEntry
	found, err := b.getMeta(keyStopSign, &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

// Trim deletes every log entry below idx. Entries at or above idx are
// untouched; GetEntries/GetSuffix keep using absolute indices regardless
// of what has been deleted, so no base-offset bookkeeping is needed here
// (bbolt's keys already are the absolute index).
func (b *BoltStorage[T, S]) Trim(idx uint64) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketLog)
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) < idx; k, _ = c.Next() {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storage.OpError(storage.LogError, "trim", err)
	}
	return nil
}

func (b *BoltStorage[T, S]) SetCompactedIdx(idx uint64) error {
	return b.setMeta(keyTrimmedIdx, idx)
}

func (b *BoltStorage[T, S]) GetCompactedIdx() (uint64, error) {
	var idx uint64
	_, err := b.getMeta(keyTrimmedIdx, &idx)
	return idx, err
}

func (b *BoltStorage[T, S]) SetSnapshot(snap S) error {
	return b.setMeta(keySnapshot, snap)
}

func (b *BoltStorage[T, S]) GetSnapshot() (*S, error) {
	var s S
	found, err := b.getMeta(keySnapshot, &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}
