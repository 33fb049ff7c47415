// Package audit implements the append-only encrypted audit log (C8). Each
// event is sealed independently, bound by Associated Data to "audit" and
// its sequence number, so events cannot be reordered or substituted for one
// another without detection.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/envelope"
)

// Kind enumerates the audit event kinds named in §4.7.
type Kind string

const (
	VaultCreated           Kind = "vault_created"
	VaultUnlocked          Kind = "vault_unlocked"
	VaultUnlockedBackup    Kind = "vault_unlocked_backup_code"
	FailedUnlockAttempt    Kind = "failed_unlock_attempt"
	Failed2FAAttempt       Kind = "failed_2fa_attempt"
	VaultLocked            Kind = "vault_locked"
	EntryAccessed          Kind = "entry_accessed"
	PasswordViewed         Kind = "password_viewed"
	PasswordCopied         Kind = "password_copied"
	EntryUpdated           Kind = "entry_updated"
	FileUploaded           Kind = "file_uploaded"
	EntryDeleted           Kind = "entry_deleted"
	TwoFactorConfigured    Kind = "two_factor_configured"
	TwoFactorDisabled      Kind = "two_factor_disabled"
	DuressConfigured       Kind = "duress_configured"
	DuressDisabled         Kind = "duress_disabled"
)

// Event is one audit log entry.
type Event struct {
	Kind          Kind   `json:"kind"`
	TimestampMs   int64  `json:"timestamp_ms"`
	TargetID      string `json:"target_id,omitempty"`
	TitleSnapshot string `json:"title_snapshot,omitempty"`
}

// Log appends and reads the encrypted audit log at <vaultRoot>/audit.log:
// one base64-encoded envelope per line.
type Log struct {
	path string
}

// NewLog binds a Log to vaultRoot.
func NewLog(vaultRoot string) *Log {
	return &Log{path: filepath.Join(vaultRoot, constants.AuditLogFileName)}
}

// Append seals ev under auditKey, bound to the given sequence number, and
// appends it to the log file. Suppressed entirely while in duress mode;
// callers must not call Append during a duress session (§4.5 point 3).
func (l *Log) Append(ev Event, seq uint64, auditKey []byte) error {
	plaintext, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// The sequence number is folded into the record id slot of the
	// context's chunk index, since audit events have no record id of their
	// own but must still be bound to their position in the sequence.
	ctx := envelope.Context{Purpose: envelope.PurposeAudit, RecordID: uuid.Nil, ChunkIndex: uint32(seq)}
	env, err := envelope.Seal(cryptoprim.AlgXChaCha20Poly1305, auditKey, ctx, plaintext)
	if err != nil {
		return fmt.Errorf("seal event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.SecureFilePerms)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(env.MarshalText() + "\n"); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return f.Sync()
}

// NextSequence returns the number of events currently in the log, i.e. the
// sequence number the next Append should use.
func (l *Log) NextSequence() (uint64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	var n uint64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if scanner.Text() != "" {
			n++
		}
	}
	return n, scanner.Err()
}

// ReadAll decrypts every event in the log using auditKey. Corrupt entries
// (failed AEAD open, e.g. from a truncated crash write) are skipped and
// counted rather than aborting the whole read, matching §7's policy of not
// letting one bad metadata entry take down listing-style reads.
func (l *Log) ReadAll(auditKey []byte) (events []Event, corrupt int, err error) {
	f, ferr := os.Open(l.path)
	if ferr != nil {
		if os.IsNotExist(ferr) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open audit log: %w", ferr)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var seq uint64
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		env, perr := envelope.UnmarshalText(line)
		if perr != nil {
			corrupt++
			seq++
			continue
		}
		pt, oerr := env.Open(auditKey, envelope.Context{Purpose: envelope.PurposeAudit, RecordID: uuid.Nil, ChunkIndex: uint32(seq)})
		if oerr != nil {
			corrupt++
			seq++
			continue
		}
		var ev Event
		if jerr := json.Unmarshal(pt, &ev); jerr != nil {
			corrupt++
			seq++
			continue
		}
		events = append(events, ev)
		seq++
	}
	return events, corrupt, scanner.Err()
}

// Rekey decrypts every entry under oldKey and rewrites the whole log
// resealed under newKey, preserving each entry's original sequence number
// as AAD. Used on passphrase rotation, since the audit key is itself HKDF
// derived from the vault KEK and would otherwise become unreadable the
// moment the KEK changes. Corrupt entries encountered under oldKey are
// preserved byte-for-byte rather than dropped, so rotation never discards
// log lines a later investigation might still want.
func (l *Log) Rekey(oldKey, newKey []byte) error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open audit log: %w", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var rewritten []string
	var seq uint64
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ctx := envelope.Context{Purpose: envelope.PurposeAudit, RecordID: uuid.Nil, ChunkIndex: uint32(seq)}
		env, perr := envelope.UnmarshalText(line)
		if perr != nil {
			rewritten = append(rewritten, line)
			seq++
			continue
		}
		pt, oerr := env.Open(oldKey, ctx)
		if oerr != nil {
			rewritten = append(rewritten, line)
			seq++
			continue
		}
		resealed, serr := envelope.Seal(cryptoprim.AlgXChaCha20Poly1305, newKey, ctx, pt)
		if serr != nil {
			f.Close()
			return fmt.Errorf("reseal audit entry %d: %w", seq, serr)
		}
		rewritten = append(rewritten, resealed.MarshalText())
		seq++
	}
	if serr := scanner.Err(); serr != nil {
		f.Close()
		return serr
	}
	f.Close()

	tmp := l.path + ".rekey.tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, constants.SecureFilePerms)
	if err != nil {
		return fmt.Errorf("create rekeyed audit log: %w", err)
	}
	for _, line := range rewritten {
		if _, werr := out.WriteString(line + "\n"); werr != nil {
			out.Close()
			os.Remove(tmp)
			return fmt.Errorf("write rekeyed audit log: %w", werr)
		}
	}
	if serr := out.Sync(); serr != nil {
		out.Close()
		os.Remove(tmp)
		return serr
	}
	if cerr := out.Close(); cerr != nil {
		os.Remove(tmp)
		return cerr
	}
	return os.Rename(tmp, l.path)
}
