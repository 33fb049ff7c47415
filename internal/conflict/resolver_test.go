package conflict

import "testing"

func TestDetectClassifiesStates(t *testing.T) {
	cases := []struct {
		name   string
		local  RecordState
		remote RecordState
		want   Type
	}{
		{"local only", RecordState{Present: true, Modified: 5}, RecordState{}, LocalOnly},
		{"remote only", RecordState{}, RecordState{Present: true, Modified: 5}, RemoteOnly},
		{"both absent", RecordState{}, RecordState{}, InSync},
		{"same checksum", RecordState{Present: true, Checksum: "a"}, RecordState{Present: true, Checksum: "a"}, InSync},
		{"deleted remotely", RecordState{Present: true, Modified: 5, Checksum: "a"}, RecordState{Present: true, Modified: 0, Checksum: "b"}, DeletedRemotely},
		{"deleted locally", RecordState{Present: true, Modified: 0, Checksum: "a"}, RecordState{Present: true, Modified: 5, Checksum: "b"}, DeletedLocally},
		{"modified both", RecordState{Present: true, Modified: 5, Checksum: "a"}, RecordState{Present: true, Modified: 7, Checksum: "b"}, ModifiedBoth},
	}
	for _, c := range cases {
		if got := Detect(c.local, c.remote); got != c.want {
			t.Fatalf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestDetectAllSkipsInSyncAndOrdersDeterministically(t *testing.T) {
	local := map[string]RecordState{
		"rec-b": {Present: true, Modified: 10, Checksum: "x", CreatedAt: 2},
		"rec-a": {Present: true, Modified: 10, Checksum: "y", CreatedAt: 1},
		"rec-c": {Present: true, Checksum: "same", CreatedAt: 3},
	}
	remote := map[string]RecordState{
		"rec-b": {Present: true, Modified: 20, Checksum: "z", CreatedAt: 2},
		"rec-a": {Present: true, Modified: 20, Checksum: "w", CreatedAt: 1},
		"rec-c": {Present: true, Checksum: "same", CreatedAt: 3},
	}
	conflicts := DetectAll(local, remote)
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts (rec-c is in sync), got %d", len(conflicts))
	}
	if conflicts[0].RecordID != "rec-a" || conflicts[1].RecordID != "rec-b" {
		t.Fatalf("expected deterministic creation-time ordering, got %v", conflicts)
	}
}

func TestResolveKeepNewestPicksLaterModified(t *testing.T) {
	c := Conflict{
		Local:  RecordState{Modified: 10, Checksum: "a"},
		Remote: RecordState{Modified: 20, Checksum: "b"},
	}
	got, err := Resolve(c, KeepNewest)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Checksum != "b" {
		t.Fatalf("expected remote (newer) to win, got %+v", got)
	}
}

func TestResolveSkipRequiresCallerHandling(t *testing.T) {
	c := Conflict{Local: RecordState{Modified: 10}, Remote: RecordState{Modified: 20}}
	if _, err := Resolve(c, Skip); err == nil {
		t.Fatalf("expected skip strategy to report an error requiring caller handling")
	}
	if _, err := Resolve(c, KeepBoth); err == nil {
		t.Fatalf("expected keep_both strategy to report an error requiring caller handling")
	}
}

func TestChooseStrategyDefaults(t *testing.T) {
	if got := ChooseStrategy(Conflict{Type: LocalOnly}); got != KeepLocal {
		t.Fatalf("expected keep_local default for local_only, got %s", got)
	}
	if got := ChooseStrategy(Conflict{Type: RemoteOnly}); got != KeepRemote {
		t.Fatalf("expected keep_remote default for remote_only, got %s", got)
	}
	if got := ChooseStrategy(Conflict{Type: ModifiedBoth}); got != KeepNewest {
		t.Fatalf("expected keep_newest default for modified_both, got %s", got)
	}
}

func TestCanonicalChecksumIsStableAcrossEqualValues(t *testing.T) {
	type thing struct {
		B string
		A string
	}
	c1, err := CanonicalChecksum(thing{A: "1", B: "2"})
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	c2, err := CanonicalChecksum(thing{A: "1", B: "2"})
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("expected identical values to produce identical checksums")
	}
}
