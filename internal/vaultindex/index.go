// Package vaultindex implements the encrypted vault index (C4): the
// per-record metadata map persisted as a single envelope, plus the KDF
// parameters and verifiers needed to unlock it.
package vaultindex

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/envelope"
	"github.com/veilcask/veilcask/internal/fsatomic"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// EntryType names which record variant an IndexEntry describes.
type EntryType string

const (
	EntryPassword EntryType = "password"
	EntryNote     EntryType = "note"
	EntryFile     EntryType = "file"
)

// CloudSyncStatus tracks per-record replication state.
type CloudSyncStatus string

const (
	SyncNone    CloudSyncStatus = "none"
	SyncPending CloudSyncStatus = "pending"
	SyncSynced  CloudSyncStatus = "synced"
	SyncError   CloudSyncStatus = "error"
)

// Entry is the metadata the index keeps per record, independent of the
// record's own ciphertext file, so list() never needs to open a payload.
type Entry struct {
	TitleEncrypted string          `json:"title_encrypted"` // base64 envelope, sealed with the metadata subkey
	EntryType      EntryType       `json:"entry_type"`
	Category       string          `json:"category,omitempty"`
	Favorite       bool            `json:"favorite"`
	MimeType       string          `json:"mime_type,omitempty"`
	FileSize       int64           `json:"file_size,omitempty"`
	ChunkCount     int             `json:"chunk_count,omitempty"`
	CloudChunkIDs  []string        `json:"cloud_chunk_ids,omitempty"`
	CloudStatus    CloudSyncStatus `json:"cloud_sync_status"`
	CloudSyncedAt  int64           `json:"cloud_synced_at,omitempty"`
	Created        int64           `json:"created"`
	Modified       int64           `json:"modified"`
}

// TwoFactorConfig is the vault-level 2FA state (C7), embedded in the index.
type TwoFactorConfig struct {
	Enabled      bool     `json:"enabled"`
	Secret       string   `json:"secret,omitempty"` // base32 TOTP seed
	Algorithm    string   `json:"algorithm,omitempty"`
	Digits       int      `json:"digits,omitempty"`
	PeriodSecs   int      `json:"period_secs,omitempty"`
	BackupCodes  []string `json:"backup_codes,omitempty"` // hashed, one-shot
}

// DuressConfig holds the duress verifier and decoy records (C6).
type DuressConfig struct {
	Verifier string        `json:"verifier,omitempty"` // base64
	Decoys   []DecoyRecord `json:"decoys,omitempty"`
}

// DecoyRecord is a plausible, non-secret record shown only in duress mode.
type DecoyRecord struct {
	ID             string `json:"id"`
	TitleEncrypted string `json:"title_encrypted"`
}

// Metadata holds vault-wide bookkeeping.
type Metadata struct {
	EntryCount int   `json:"entry_count"`
	Created    int64 `json:"created"`
	LastSync   int64 `json:"last_sync,omitempty"`
}

// Index is the decrypted in-memory form of the vault index.
type Index struct {
	SchemaVersion int                    `json:"schema_version"`
	KeyHash       string                 `json:"key_hash"` // base64 verifier
	Entries       map[string]Entry       `json:"entries"`
	Metadata      Metadata               `json:"metadata"`
	Vault2FA      *TwoFactorConfig       `json:"vault_2fa,omitempty"`
	Duress        *DuressConfig          `json:"duress,omitempty"`
	KDF           cryptoprim.KDFParams   `json:"-"` // carried out-of-band; see Header
}

// Header is the part of the on-disk format that must be readable before any
// key exists: the salt, KDF parameters, and the two verifiers unlock needs
// to decide which passphrase (real or duress) a candidate matches before it
// can derive an index key to decrypt anything. Verifiers are safe to store
// in the clear: they are one-way HKDF outputs of the KEK, not the KEK
// itself (see cryptoprim.Verifier).
type Header struct {
	SchemaVersion int    `json:"schema_version"`
	Algorithm     string `json:"algorithm"`
	Time          uint32 `json:"time,omitempty"`
	MemKiB        uint32 `json:"mem_kib,omitempty"`
	Threads       uint8  `json:"threads,omitempty"`
	ScryptN       int    `json:"scrypt_n,omitempty"`
	ScryptR       int    `json:"scrypt_r,omitempty"`
	ScryptP       int    `json:"scrypt_p,omitempty"`
	PBKDF2Iters   int    `json:"pbkdf2_iters,omitempty"`

	KeyHash        string        `json:"key_hash"`
	DuressVerifier string        `json:"duress_verifier,omitempty"`
	DuressDecoys   []DecoyRecord `json:"duress_decoys,omitempty"`
}

const schemaVersion = 2

// New builds a fresh, empty index for vault init.
func New() *Index {
	return &Index{
		SchemaVersion: schemaVersion,
		Entries:       map[string]Entry{},
		Metadata:      Metadata{},
	}
}

// Store reads and writes the index file at <vaultRoot>/vault.enc, whose
// on-disk text format is "SALT_B64|ENVELOPE_B64".
type Store struct {
	path string
}

// NewStore binds a Store to the index file under vaultRoot.
func NewStore(vaultRoot string) *Store {
	return &Store{path: filepath.Join(vaultRoot, constants.IndexFileName)}
}

// Path returns the index file's absolute path.
func (s *Store) Path() string { return s.path }

// Exists reports whether an index file is already present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// ReadHeader loads just the salt and KDF parameters, without requiring a
// key: it is the first half of unlock, run before the passphrase is known
// to be correct.
func (s *Store) ReadHeader() (salt []byte, hdr Header, err error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("read index: %w", err)
	}
	firstLine, _, ok := strings.Cut(string(raw), "\n")
	if !ok {
		return nil, Header{}, fmt.Errorf("missing kdf header line")
	}
	saltB64, _, ok := strings.Cut(firstLine, "|")
	if !ok {
		return nil, Header{}, fmt.Errorf("malformed index file: missing separator")
	}
	salt, err = base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, Header{}, fmt.Errorf("decode salt: %w", err)
	}
	// The KDF header travels as a second line next to the sealed payload so
	// it can be read before the index key exists.
	lines := strings.SplitN(string(raw), "\n", 2)
	if len(lines) < 2 {
		return nil, Header{}, fmt.Errorf("missing kdf header line")
	}
	if err := json.Unmarshal([]byte(lines[1]), &hdr); err != nil {
		return nil, Header{}, fmt.Errorf("parse kdf header: %w", err)
	}
	return salt, hdr, nil
}

// Load decrypts the full index using the already-derived index subkey.
func (s *Store) Load(indexKey []byte) (*Index, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	firstLine := strings.SplitN(string(raw), "\n", 2)[0]
	_, envB64, ok := strings.Cut(firstLine, "|")
	if !ok {
		return nil, fmt.Errorf("malformed index file: missing separator")
	}
	env, err := envelope.UnmarshalText(envB64)
	if err != nil {
		return nil, fmt.Errorf("parse index envelope: %w", err)
	}
	pt, err := env.Open(indexKey, envelope.Context{Purpose: envelope.PurposeIndex})
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.AeadOpenFailed, err)
	}
	var idx Index
	if err := json.Unmarshal(pt, &idx); err != nil {
		return nil, fmt.Errorf("parse index json: %w", err)
	}
	return &idx, nil
}

// Save encrypts and atomically persists idx, given the salt and KDF header
// established at init, and the current index subkey.
func (s *Store) Save(idx *Index, salt []byte, hdr Header, indexKey []byte) error {
	plaintext, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	env, err := envelope.Seal(cryptoprim.AlgXChaCha20Poly1305, indexKey, envelope.Context{Purpose: envelope.PurposeIndex}, plaintext)
	if err != nil {
		return fmt.Errorf("seal index: %w", err)
	}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("marshal kdf header: %w", err)
	}
	line1 := base64.StdEncoding.EncodeToString(salt) + "|" + env.MarshalText()
	out := line1 + "\n" + string(hdrJSON) + "\n"
	return fsatomic.WriteFile(s.path, []byte(out), constants.SecureFilePerms)
}

// EncodeKeyHash base64-encodes a verifier for storage in Index.KeyHash.
func EncodeKeyHash(v []byte) string { return base64.StdEncoding.EncodeToString(v) }

// DecodeKeyHash decodes Index.KeyHash back to raw verifier bytes, returning
// nil on any decode failure so callers fail closed.
func DecodeKeyHash(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// HeaderFromParams converts cryptoprim.KDFParams into the persisted Header
// shape (everything except the salt, which travels separately).
func HeaderFromParams(p cryptoprim.KDFParams) Header {
	return Header{
		SchemaVersion: schemaVersion,
		Algorithm:     string(p.Algorithm),
		Time:          p.Time,
		MemKiB:        p.MemKiB,
		Threads:       p.Threads,
		ScryptN:       p.ScryptN,
		ScryptR:       p.ScryptR,
		ScryptP:       p.ScryptP,
		PBKDF2Iters:   p.PBKDF2Iterations,
	}
}

// ParamsFromHeader converts a persisted Header plus its salt back into
// cryptoprim.KDFParams for DeriveKEK.
func ParamsFromHeader(hdr Header, salt []byte) cryptoprim.KDFParams {
	return cryptoprim.KDFParams{
		Algorithm:        cryptoprim.KDFAlgorithm(hdr.Algorithm),
		Salt:             salt,
		Time:             hdr.Time,
		MemKiB:           hdr.MemKiB,
		Threads:          hdr.Threads,
		ScryptN:          hdr.ScryptN,
		ScryptR:          hdr.ScryptR,
		ScryptP:          hdr.ScryptP,
		PBKDF2Iterations: hdr.PBKDF2Iters,
		KeyLen:           constants.Argon2KeyLen,
	}
}
