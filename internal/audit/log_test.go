package audit

import (
	"testing"

	"github.com/veilcask/veilcask/internal/cryptoprim"
)

func TestAppendReadAllRoundTrip(t *testing.T) {
	root := t.TempDir()
	log := NewLog(root)
	key, _ := cryptoprim.RandomBytes(32)

	seq, err := log.NextSequence()
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	if seq != 0 {
		t.Fatalf("expected 0 on fresh log, got %d", seq)
	}

	if err := log.Append(Event{Kind: VaultCreated, TimestampMs: 1}, 0, key); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(Event{Kind: VaultUnlocked, TimestampMs: 2}, 1, key); err != nil {
		t.Fatalf("append: %v", err)
	}

	seq, err = log.NextSequence()
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	if seq != 2 {
		t.Fatalf("expected sequence 2, got %d", seq)
	}

	events, corrupt, err := log.ReadAll(key)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if corrupt != 0 {
		t.Fatalf("expected no corrupt entries, got %d", corrupt)
	}
	if len(events) != 2 || events[0].Kind != VaultCreated || events[1].Kind != VaultUnlocked {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestReadAllSkipsCorruptEntriesUnderWrongKey(t *testing.T) {
	root := t.TempDir()
	log := NewLog(root)
	key, _ := cryptoprim.RandomBytes(32)
	wrongKey, _ := cryptoprim.RandomBytes(32)

	if err := log.Append(Event{Kind: VaultCreated, TimestampMs: 1}, 0, key); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, corrupt, err := log.ReadAll(wrongKey)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if corrupt != 1 || len(events) != 0 {
		t.Fatalf("expected 1 corrupt entry and 0 events, got corrupt=%d events=%d", corrupt, len(events))
	}
}
