package main

import "testing"

func TestParsePeers(t *testing.T) {
	entries, err := parsePeers("2=127.0.0.1:7001,3=127.0.0.1:7002")
	if err != nil {
		t.Fatalf("parsePeers: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].pid != 2 || entries[0].addr != "127.0.0.1:7001" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}

func TestParsePeersEmpty(t *testing.T) {
	entries, err := parsePeers("")
	if err != nil {
		t.Fatalf("parsePeers: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries, got %+v", entries)
	}
}

func TestParsePeersMalformed(t *testing.T) {
	if _, err := parsePeers("garbage"); err == nil {
		t.Fatal("expected error for malformed entry")
	}
}

func TestBumpPort(t *testing.T) {
	got, err := bumpPort("127.0.0.1:7000", 1)
	if err != nil {
		t.Fatalf("bumpPort: %v", err)
	}
	if got != "127.0.0.1:7001" {
		t.Fatalf("got %q", got)
	}
}
