package storagetest_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/AbyelT/omnipaxos/storage"
	"github.com/AbyelT/omnipaxos/storage/boltstore"
	"github.com/AbyelT/omnipaxos/storage/memstore"
	"github.com/AbyelT/omnipaxos/storage/storagetest"
)

func TestMemoryStorageConformance(t *testing.T) {
	storagetest.RunConformanceSuite(t, func() storage.Storage[string, string] {
		return memstore.New[string, string]()
	})
}

func TestBoltStorageConformance(t *testing.T) {
	dir := t.TempDir()
	n := 0
	storagetest.RunConformanceSuite(t, func() storage.Storage[string, string] {
		n++
		path := filepath.Join(dir, fmt.Sprintf("store-%d.db", n))
		db, err := boltstore.Open[string, string](path)
		if err != nil {
			t.Fatalf("open boltstore: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return db
	})
}
