package main

import "strings"

// stringSnapshot is the toy domain snapshot type for this demo's
// string-entry log: the newline-joined text of every entry folded in so
// far.
type stringSnapshot = string

// concatSnapshotHandler folds a run of decided string entries into a
// stringSnapshot by joining them, and merges snapshots the same way.
type concatSnapshotHandler struct{}

func (concatSnapshotHandler) Create(entries []string) stringSnapshot {
	return strings.Join(entries, "\n")
}

func (concatSnapshotHandler) Merge(base *stringSnapshot, delta stringSnapshot) {
	if *base == "" {
		*base = delta
		return
	}
	*base = *base + "\n" + delta
}

func (concatSnapshotHandler) UseSnapshots() bool { return true }
