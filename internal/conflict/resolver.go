// Package conflict implements the vault's sync conflict detection and
// resolution (C10): per-record version tracking, canonical-JSON checksums,
// and the resolution strategies offered to the caller.
package conflict

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/veilcask/veilcask/internal/cloudconfig"
)

// Type names a disagreement between local and remote state for one record.
type Type string

const (
	LocalOnly      Type = "local_only"
	RemoteOnly     Type = "remote_only"
	ModifiedBoth   Type = "modified_both"
	DeletedLocally Type = "deleted_locally"
	DeletedRemotely Type = "deleted_remotely"
	InSync         Type = "in_sync"
)

// Strategy names a resolution a caller can apply to a Conflict.
type Strategy string

const (
	KeepLocal  Strategy = "keep_local"
	KeepRemote Strategy = "keep_remote"
	KeepNewest Strategy = "keep_newest"
	KeepBoth   Strategy = "keep_both"
	Merge      Strategy = "merge"
	DeleteBoth Strategy = "delete"
	Skip       Strategy = "skip"
)

// RecordState is the minimal per-record state the resolver needs: present
// locally/remotely, its modified timestamp, and its canonical checksum.
type RecordState struct {
	RecordID       string
	Present        bool
	Modified       int64
	Checksum       string
	CreatedAt      int64 // used only for deterministic resolution ordering
}

// Conflict pairs a record's local and remote state with its detected Type.
type Conflict struct {
	RecordID string
	Type     Type
	Local    RecordState
	Remote   RecordState
}

// CanonicalChecksum computes SHA-256 over the canonical JSON encoding of v:
// stable key ordering (Go's encoding/json already sorts map keys and
// preserves struct field order), UTF-8, no extraneous whitespace.
func CanonicalChecksum(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal canonical json: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Detect classifies the relationship between local and remote state for one
// record (§4.9 step 2).
func Detect(local, remote RecordState) Type {
	switch {
	case local.Present && !remote.Present:
		return LocalOnly
	case !local.Present && remote.Present:
		return RemoteOnly
	case !local.Present && !remote.Present:
		return InSync
	case local.Checksum == remote.Checksum:
		return InSync
	case local.Modified > 0 && remote.Modified == 0:
		return DeletedRemotely
	case remote.Modified > 0 && local.Modified == 0:
		return DeletedLocally
	default:
		return ModifiedBoth
	}
}

// DetectAll builds a Conflict for every record key present in either map,
// skipping those that resolve to InSync.
func DetectAll(local, remote map[string]RecordState) []Conflict {
	seen := map[string]bool{}
	var out []Conflict
	collect := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		l := local[id]
		r := remote[id]
		l.RecordID, r.RecordID = id, id
		t := Detect(l, r)
		if t != InSync {
			out = append(out, Conflict{RecordID: id, Type: t, Local: l, Remote: r})
		}
	}
	for id := range local {
		collect(id)
	}
	for id := range remote {
		collect(id)
	}
	// Deterministic ordering: creation timestamp, then id (§4.9 step 4).
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].Local.CreatedAt, out[j].Local.CreatedAt
		if ci == 0 {
			ci = out[i].Remote.CreatedAt
		}
		if cj == 0 {
			cj = out[j].Remote.CreatedAt
		}
		if ci != cj {
			return ci < cj
		}
		return out[i].RecordID < out[j].RecordID
	})
	return out
}

// ChooseStrategy applies the default policy when the caller has not made an
// explicit choice: keep_newest by Modified, falling back to keep_both only
// when both sides modified the same field set and neither is clearly newer.
func ChooseStrategy(c Conflict) Strategy {
	switch c.Type {
	case LocalOnly, DeletedRemotely:
		return KeepLocal
	case RemoteOnly, DeletedLocally:
		return KeepRemote
	case ModifiedBoth:
		return KeepNewest
	default:
		return Skip
	}
}

// Resolve picks the winning RecordState for a given strategy. KeepBoth and
// Merge are reported back to the caller as decisions rather than resolved
// here, since they require allocating a new record id or field-wise
// merging record content the resolver does not have access to.
func Resolve(c Conflict, strategy Strategy) (RecordState, error) {
	switch strategy {
	case KeepLocal:
		return c.Local, nil
	case KeepRemote:
		return c.Remote, nil
	case KeepNewest:
		if c.Local.Modified >= c.Remote.Modified {
			return c.Local, nil
		}
		return c.Remote, nil
	case Skip, DeleteBoth, KeepBoth, Merge:
		return RecordState{}, fmt.Errorf("strategy %s requires caller-side handling, not a single winning state", strategy)
	default:
		return RecordState{}, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// RecordHistory appends a resolution decision to the sync-state sidecar's
// conflict history, used so Skip decisions are not silently lost.
func RecordHistory(st *cloudconfig.SyncState, recordID string, t Type, strategy Strategy, at int64) {
	st.ConflictHistory = append(st.ConflictHistory, cloudconfig.ConflictHistoryEntry{
		RecordID: recordID, Type: string(t), Resolution: string(strategy), At: at,
	})
}
