package vault

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veilcask/veilcask/internal/audit"
	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/duress"
	"github.com/veilcask/veilcask/internal/envelope"
	"github.com/veilcask/veilcask/internal/keymgr"
	"github.com/veilcask/veilcask/internal/recordstore"
	"github.com/veilcask/veilcask/internal/vaultindex"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// session snapshots the key material and cached index a single operation
// needs, taken once under the keymgr lock so the rest of the call can run
// without re-checking sealed state on every key access.
type session struct {
	sk         *keymgr.Subkeys
	generation uint64
	duress     bool
}

func (v *Vault) beginOp(op string) (*session, *vaultindex.Index, error) {
	isDuress := v.keys.IsDuress()
	if err := duress.CheckForbidden(op, isDuress); err != nil {
		return nil, nil, err
	}
	sk, err := v.keys.Subkeys()
	if err != nil {
		return nil, nil, err
	}
	v.mu.Lock()
	idx := v.idx
	gen := v.generation
	v.mu.Unlock()
	if idx == nil {
		return nil, nil, vaulterr.New(vaulterr.Locked)
	}
	v.touch()
	return &session{sk: sk, generation: gen, duress: isDuress}, idx, nil
}

func sealTitle(purpose envelope.Purpose, key []byte, id uuid.UUID, title string) (string, error) {
	env, err := envelope.Seal(cryptoprim.AlgXChaCha20Poly1305, key, envelope.Context{Purpose: purpose, RecordID: id}, []byte(title))
	if err != nil {
		return "", fmt.Errorf("seal title: %w", err)
	}
	return env.MarshalText(), nil
}

func openTitle(purpose envelope.Purpose, key []byte, id uuid.UUID, titleEncrypted string) (string, error) {
	if titleEncrypted == "" {
		return "", nil
	}
	env, err := envelope.UnmarshalText(titleEncrypted)
	if err != nil {
		return "", fmt.Errorf("parse title envelope: %w", err)
	}
	pt, err := env.Open(key, envelope.Context{Purpose: purpose, RecordID: id})
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.AeadOpenFailed, err)
	}
	return string(pt), nil
}

// persistIndex re-seals and atomically saves the current in-memory index,
// then bumps its entry count. Callers hold no lock across this call other
// than the one beginOp already released; index mutation in this package is
// always read-modify-persist within one operation's goroutine, which the
// CLI's single-threaded command dispatch guarantees is never concurrent
// with another mutating operation on the same vault.
func (v *Vault) persistIndex(idx *vaultindex.Index, sk *keymgr.Subkeys) error {
	v.mu.Lock()
	salt, hdr := v.salt, v.hdr
	v.mu.Unlock()
	return v.index.Save(idx, salt, hdr, sk.Index)
}

func nowUnixMs() int64 { return time.Now().UnixMilli() }

// commitNewEntry records a freshly created record's index entry and, outside
// a duress session, persists both the record and the index to disk. Inside
// a duress session (§4.5 point 2) nothing is written to disk: the record is
// only cached in v.duressScratch so the remainder of the session can list
// and fetch it, and it vanishes on Lock, indistinguishable from the caller's
// point of view from a real, persisted add.
func (v *Vault) commitNewEntry(s *session, idx *vaultindex.Index, rec *recordstore.Record, entry vaultindex.Entry) error {
	idx.Entries[rec.ID] = entry
	idx.Metadata.EntryCount = len(idx.Entries)
	if s.duress {
		v.mu.Lock()
		if v.duressScratch == nil {
			v.duressScratch = map[string]*recordstore.Record{}
		}
		v.duressScratch[rec.ID] = rec
		v.mu.Unlock()
		return nil
	}
	if err := v.records.SaveEntry(rec, s.sk.Entry); err != nil {
		return err
	}
	return v.persistIndex(idx, s.sk)
}

// AddPassword creates a new Password record and its index entry.
func (v *Vault) AddPassword(title, username, password, url, notes, category string, totpSeed *recordstore.TOTPData) (string, error) {
	s, idx, err := v.beginOp("add_password")
	if err != nil {
		return "", err
	}
	id := v.newRecordID()
	rid := uuid.MustParse(id)
	now := nowUnixMs()

	rec := &recordstore.Record{
		ID: id, Type: recordstore.TypePassword, Title: title, Created: now, Modified: now,
		Username: username, Password: password, URL: url, Notes: notes, Category: category,
		TOTP: totpSeed, PasswordLastChanged: now,
	}
	titleEnc, err := sealTitle(envelope.PurposeMetadata, s.sk.Metadata, rid, title)
	if err != nil {
		return "", err
	}
	entry := vaultindex.Entry{
		TitleEncrypted: titleEnc, EntryType: vaultindex.EntryPassword, Category: category,
		CloudStatus: vaultindex.SyncNone, Created: now, Modified: now,
	}
	if err := v.commitNewEntry(s, idx, rec, entry); err != nil {
		return "", err
	}
	_ = v.appendAudit(audit.EntryUpdated, id, title)
	return id, nil
}

// AddNote creates a new Note record and its index entry.
func (v *Vault) AddNote(title, content, category string) (string, error) {
	s, idx, err := v.beginOp("add_note")
	if err != nil {
		return "", err
	}
	id := v.newRecordID()
	rid := uuid.MustParse(id)
	now := nowUnixMs()

	rec := &recordstore.Record{ID: id, Type: recordstore.TypeNote, Title: title, Created: now, Modified: now, Content: content, Category: category}
	titleEnc, err := sealTitle(envelope.PurposeMetadata, s.sk.Metadata, rid, title)
	if err != nil {
		return "", err
	}
	entry := vaultindex.Entry{
		TitleEncrypted: titleEnc, EntryType: vaultindex.EntryNote, Category: category,
		CloudStatus: vaultindex.SyncNone, Created: now, Modified: now,
	}
	if err := v.commitNewEntry(s, idx, rec, entry); err != nil {
		return "", err
	}
	_ = v.appendAudit(audit.EntryUpdated, id, title)
	return id, nil
}

// AddFile streams src into a new chunked File record. In a duress session,
// src is drained but never written to disk: chunk content for a duress-added
// file cannot be retrieved later (a limitation accepted for this session
// only; the configured decoys themselves still round-trip normally, since
// those were sealed for real at configure-duress time).
func (v *Vault) AddFile(title, originalName, mimeType string, src io.Reader, size int64, opts recordstore.FileWriteOptions, progress func(processed, total int64)) (string, error) {
	s, idx, err := v.beginOp("add_file")
	if err != nil {
		return "", err
	}
	id := v.newRecordID()
	rid := uuid.MustParse(id)
	now := nowUnixMs()

	if s.duress {
		written, _ := io.Copy(io.Discard, src)
		rec := &recordstore.Record{
			ID: id, Type: recordstore.TypeFile, Title: title, Created: now, Modified: now,
			OriginalName: originalName, MimeType: mimeType, Size: written,
		}
		titleEnc, err := sealTitle(envelope.PurposeMetadata, s.sk.Metadata, rid, title)
		if err != nil {
			return "", err
		}
		entry := vaultindex.Entry{
			TitleEncrypted: titleEnc, EntryType: vaultindex.EntryFile, MimeType: mimeType,
			FileSize: written, CloudStatus: vaultindex.SyncNone, Created: now, Modified: now,
		}
		if err := v.commitNewEntry(s, idx, rec, entry); err != nil {
			return "", err
		}
		return id, nil
	}

	opts.Progress = progress
	result, err := v.records.AddFile(id, src, size, s.sk.Entry, opts)
	if err != nil {
		return "", err
	}
	if err := v.keys.CheckGeneration(s.generation); err != nil {
		_ = v.records.DeleteFileChunks(id, result.ChunkCount)
		return "", err
	}

	rec := &recordstore.Record{
		ID: id, Type: recordstore.TypeFile, Title: title, Created: now, Modified: now,
		OriginalName: originalName, MimeType: mimeType, Size: result.Size, SHA256: result.SHA256,
		ChunkCount: result.ChunkCount, ChunkHashAlg: string(opts.HashAlg),
	}
	if err := v.records.SaveEntry(rec, s.sk.Entry); err != nil {
		_ = v.records.DeleteFileChunks(id, result.ChunkCount)
		return "", err
	}

	titleEnc, err := sealTitle(envelope.PurposeMetadata, s.sk.Metadata, rid, title)
	if err != nil {
		return "", err
	}
	idx.Entries[id] = vaultindex.Entry{
		TitleEncrypted: titleEnc, EntryType: vaultindex.EntryFile, MimeType: mimeType,
		FileSize: result.Size, ChunkCount: result.ChunkCount, CloudStatus: vaultindex.SyncNone,
		Created: now, Modified: now,
	}
	idx.Metadata.EntryCount = len(idx.Entries)
	if err := v.persistIndex(idx, s.sk); err != nil {
		return "", err
	}
	_ = v.appendAudit(audit.FileUploaded, id, title)
	return id, nil
}

// scratchRecord returns a duress-session-only record previously added via
// commitNewEntry, if any.
func (v *Vault) scratchRecord(id string) (*recordstore.Record, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.duressScratch == nil {
		return nil, false
	}
	rec, ok := v.duressScratch[id]
	return rec, ok
}

// Get decrypts and returns a Password or Note record by id. Configured
// decoys are real recordstore entries sealed under the duress key at
// configure-duress time and load normally; records added during the current
// duress session come back from the in-memory scratch cache instead, since
// they were never written to disk.
func (v *Vault) Get(id string) (*recordstore.Record, error) {
	s, idx, err := v.beginOp("get")
	if err != nil {
		return nil, err
	}
	entry, ok := idx.Entries[id]
	if !ok {
		return nil, vaulterr.New(vaulterr.NotFound).WithID(id)
	}
	if s.duress {
		if rec, ok := v.scratchRecord(id); ok {
			return rec, nil
		}
	}
	rec, err := v.records.LoadEntry(id, s.sk.Entry)
	if err != nil {
		return nil, err
	}
	_ = v.appendAudit(audit.EntryAccessed, id, rec.Title)
	if entry.EntryType == vaultindex.EntryPassword {
		_ = v.appendAudit(audit.PasswordViewed, id, rec.Title)
	}
	return rec, nil
}

// GetFile streams a File record's plaintext content to dst. A duress-session
// scratch file has no retrievable chunk content (§ AddFile); dst receives
// nothing and no error, matching "simulate success".
func (v *Vault) GetFile(id string, dst io.Writer, progress func(processed, total int64)) error {
	s, idx, err := v.beginOp("get_file")
	if err != nil {
		return err
	}
	entry, ok := idx.Entries[id]
	if !ok || entry.EntryType != vaultindex.EntryFile {
		return vaulterr.New(vaulterr.NotFound).WithID(id)
	}
	if s.duress {
		if _, ok := v.scratchRecord(id); ok {
			return nil
		}
	}
	if err := v.records.GetFile(id, entry.ChunkCount, dst, s.sk.Entry, progress); err != nil {
		return err
	}
	_ = v.appendAudit(audit.EntryAccessed, id, "")
	return nil
}

// ListItem is a summary row for list()/search(), with the title already
// decrypted for display.
type ListItem struct {
	ID       string
	Title    string
	Type     vaultindex.EntryType
	Category string
	Favorite bool
	Modified int64
}

// List returns every entry's summary, decrypting only the titles.
func (v *Vault) List() ([]ListItem, error) {
	s, idx, err := v.beginOp("list")
	if err != nil {
		return nil, err
	}
	out := make([]ListItem, 0, len(idx.Entries))
	for id, e := range idx.Entries {
		rid, perr := uuid.Parse(id)
		if perr != nil {
			continue
		}
		title, terr := openTitle(envelope.PurposeMetadata, s.sk.Metadata, rid, e.TitleEncrypted)
		if terr != nil {
			title = "<corrupt title>"
		}
		out = append(out, ListItem{ID: id, Title: title, Type: e.EntryType, Category: e.Category, Favorite: e.Favorite, Modified: e.Modified})
	}
	return out, nil
}

// Search performs a case-insensitive substring match over decrypted titles
// and categories. Linear scan; the vault's scale (a personal secrets store)
// never warrants an index.
func (v *Vault) Search(query string) ([]ListItem, error) {
	items, err := v.List()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []ListItem
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.Category), q) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Update applies mutate to the decrypted record identified by id, then
// reseals and persists it, refreshing the index's title/category/modified
// fields. In a duress session the mutation is applied only to the in-memory
// copy (scratch record or decoy) and never reaches disk.
func (v *Vault) Update(id string, mutate func(*recordstore.Record)) error {
	s, idx, err := v.beginOp("update")
	if err != nil {
		return err
	}
	entry, ok := idx.Entries[id]
	if !ok {
		return vaulterr.New(vaulterr.NotFound).WithID(id)
	}
	rid := uuid.MustParse(id)

	if entry.EntryType == vaultindex.EntryFile {
		return fmt.Errorf("update does not support File records; re-upload instead")
	}

	if s.duress {
		rec, ok := v.scratchRecord(id)
		if !ok {
			var lerr error
			rec, lerr = v.records.LoadEntry(id, s.sk.Entry)
			if lerr != nil {
				return lerr
			}
		}
		mutate(rec)
		rec.Modified = nowUnixMs()
		titleEnc, err := sealTitle(envelope.PurposeMetadata, s.sk.Metadata, rid, rec.Title)
		if err != nil {
			return err
		}
		entry.TitleEncrypted = titleEnc
		entry.Category = rec.Category
		entry.Modified = rec.Modified
		idx.Entries[id] = entry
		v.mu.Lock()
		if v.duressScratch == nil {
			v.duressScratch = map[string]*recordstore.Record{}
		}
		v.duressScratch[id] = rec
		v.mu.Unlock()
		return nil
	}

	rec, err := v.records.LoadEntry(id, s.sk.Entry)
	if err != nil {
		return err
	}
	mutate(rec)
	rec.Modified = nowUnixMs()
	if err := v.records.SaveEntry(rec, s.sk.Entry); err != nil {
		return err
	}

	titleEnc, err := sealTitle(envelope.PurposeMetadata, s.sk.Metadata, rid, rec.Title)
	if err != nil {
		return err
	}
	entry.TitleEncrypted = titleEnc
	entry.Category = rec.Category
	entry.Modified = rec.Modified
	idx.Entries[id] = entry
	if err := v.persistIndex(idx, s.sk); err != nil {
		return err
	}
	_ = v.appendAudit(audit.EntryUpdated, id, rec.Title)
	return nil
}

// ToggleFavorite flips an entry's favorite flag in both the index and its
// underlying record.
func (v *Vault) ToggleFavorite(id string) error {
	s, idx, err := v.beginOp("toggle_favorite")
	if err != nil {
		return err
	}
	entry, ok := idx.Entries[id]
	if !ok {
		return vaulterr.New(vaulterr.NotFound).WithID(id)
	}
	entry.Favorite = !entry.Favorite
	idx.Entries[id] = entry
	if s.duress {
		return nil
	}
	return v.persistIndex(idx, s.sk)
}

// Delete removes a record's ciphertext (entry file or file chunks) and its
// index entry. Idempotent: deleting a missing id is not an error for the
// underlying storage layer, but is reported here so callers can distinguish
// "already gone" from "deleted". In a duress session the id is dropped from
// the in-memory index only; nothing on disk is touched.
func (v *Vault) Delete(id string) error {
	s, idx, err := v.beginOp("delete")
	if err != nil {
		return err
	}
	entry, ok := idx.Entries[id]
	if !ok {
		return vaulterr.New(vaulterr.NotFound).WithID(id)
	}
	if s.duress {
		delete(idx.Entries, id)
		idx.Metadata.EntryCount = len(idx.Entries)
		v.mu.Lock()
		delete(v.duressScratch, id)
		v.mu.Unlock()
		return nil
	}
	if entry.EntryType == vaultindex.EntryFile {
		if err := v.records.DeleteFileChunks(id, entry.ChunkCount); err != nil {
			return err
		}
	}
	if err := v.records.DeleteEntry(id); err != nil {
		return err
	}
	delete(idx.Entries, id)
	idx.Metadata.EntryCount = len(idx.Entries)
	if err := v.persistIndex(idx, s.sk); err != nil {
		return err
	}
	_ = v.appendAudit(audit.EntryDeleted, id, "")
	return nil
}
