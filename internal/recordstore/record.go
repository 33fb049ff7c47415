// Package recordstore implements per-record ciphertext storage (C5):
// Password and Note records as single entry files, and File records as one
// or more independently-sealed chunks streamed to/from disk.
package recordstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/envelope"
	"github.com/veilcask/veilcask/internal/fsatomic"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// RecordType discriminates the three record variants.
type RecordType string

const (
	TypePassword RecordType = "password"
	TypeNote     RecordType = "note"
	TypeFile     RecordType = "file"
)

// TOTPData describes a second-factor seed embedded in a Password record.
type TOTPData struct {
	Secret    string `json:"secret"`
	Issuer    string `json:"issuer,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Digits    int    `json:"digits,omitempty"`
	Period    int    `json:"period,omitempty"`
}

// Record is the union of all three record variants. Fields irrelevant to
// Type are left zero; marshaling/unmarshaling is plain JSON over this flat
// shape, matching the envelope's "one opaque plaintext blob" contract.
type Record struct {
	ID       string     `json:"id"`
	Type     RecordType `json:"type"`
	Title    string     `json:"title"`
	Favorite bool       `json:"favorite"`
	Created  int64      `json:"created"`
	Modified int64      `json:"modified"`

	// Password
	Username            string    `json:"username,omitempty"`
	Password            string    `json:"password,omitempty"`
	URL                 string    `json:"url,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	Category            string    `json:"category,omitempty"`
	TOTP                *TOTPData `json:"totp,omitempty"`
	PasswordLastChanged int64     `json:"password_last_changed,omitempty"`
	PasswordExpiryDays  int       `json:"password_expiry_days,omitempty"`

	// Note
	Content string `json:"content,omitempty"`

	// File
	OriginalName string `json:"original_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
	SHA256       string `json:"sha256,omitempty"`
	ChunkCount   int    `json:"chunk_count,omitempty"`
	ChunkHashAlg string `json:"chunk_hash_alg,omitempty"`
}

// Store persists Password/Note entry files and File chunk files under a
// vault root, sealed with the entry subkey.
type Store struct {
	root string
}

// NewStore binds a Store to vaultRoot.
func NewStore(vaultRoot string) *Store { return &Store{root: vaultRoot} }

func (s *Store) entryPath(id string) string {
	return filepath.Join(s.root, constants.EntriesDirName, id+".enc")
}

func (s *Store) chunkPath(id string, index int, chunkCount int) string {
	if chunkCount <= 1 {
		return filepath.Join(s.root, constants.FilesDirName, id+".bin")
	}
	return filepath.Join(s.root, constants.FilesDirName, fmt.Sprintf("%s_%d.bin", id, index))
}

// SaveEntry seals and atomically persists a record's metadata under
// entries/<id>.enc. For File records this is metadata only (title, size,
// checksum, chunk count); the chunk payloads themselves go through AddFile
// and live under files/ entirely separately, so saving File metadata here
// is safe and expected once AddFile has written its chunks.
func (s *Store) SaveEntry(r *Record, entryKey []byte) error {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return fmt.Errorf("invalid record id %q: %w", r.ID, err)
	}
	plaintext, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	env, err := envelope.Seal(cryptoprim.AlgXChaCha20Poly1305, entryKey, envelope.Context{Purpose: envelope.PurposeEntry, RecordID: id}, plaintext)
	if err != nil {
		return fmt.Errorf("seal record: %w", err)
	}
	return fsatomic.WriteFile(s.entryPath(r.ID), []byte(env.MarshalText()), constants.SecureFilePerms)
}

// LoadEntry decrypts a record's metadata by id, for any record type.
func (s *Store) LoadEntry(id string, entryKey []byte) (*Record, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", id, err)
	}
	raw, err := os.ReadFile(s.entryPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vaulterr.New(vaulterr.NotFound).WithID(id)
		}
		return nil, fmt.Errorf("read entry: %w", err)
	}
	env, err := envelope.UnmarshalText(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse entry envelope: %w", err)
	}
	pt, err := env.Open(entryKey, envelope.Context{Purpose: envelope.PurposeEntry, RecordID: rid})
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.AeadOpenFailed, err)
	}
	var r Record
	if err := json.Unmarshal(pt, &r); err != nil {
		return nil, fmt.Errorf("parse record json: %w", err)
	}
	return &r, nil
}

// ReadSealedEntry returns the raw, still-sealed envelope bytes backing a
// record's metadata, for callers (cloud sync) that upload ciphertext
// as-is without ever touching plaintext.
func (s *Store) ReadSealedEntry(id string) ([]byte, error) {
	raw, err := os.ReadFile(s.entryPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vaulterr.New(vaulterr.NotFound).WithID(id)
		}
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return raw, nil
}

// DeleteEntry removes a Password/Note entry file. Missing files are not an
// error (idempotent delete, §4.4).
func (s *Store) DeleteEntry(id string) error {
	err := os.Remove(s.entryPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// DeleteFileChunks removes every chunk file for a File record with the
// given chunk count. Missing chunks are not an error.
func (s *Store) DeleteFileChunks(id string, chunkCount int) error {
	for i := 0; i < chunkCount; i++ {
		p := s.chunkPath(id, i, chunkCount)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete chunk %d: %w", i, err)
		}
	}
	return nil
}
