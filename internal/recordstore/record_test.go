package recordstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/veilcask/veilcask/internal/cryptoprim"
)

func testEntryKey(t *testing.T) []byte {
	t.Helper()
	k, err := cryptoprim.RandomBytes(32)
	if err != nil {
		t.Fatalf("random key: %v", err)
	}
	return k
}

func TestSaveLoadDeleteEntry(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	key := testEntryKey(t)

	r := &Record{ID: uuid.New().String(), Type: TypePassword, Title: "GitHub", Username: "octocat", Password: "hunter2", Created: 1, Modified: 1}
	if err := store.SaveEntry(r, key); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.LoadEntry(r.ID, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Title != "GitHub" || got.Password != "hunter2" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := store.DeleteEntry(r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteEntry(r.ID); err != nil {
		t.Fatalf("idempotent delete should not error: %v", err)
	}
	if _, err := store.LoadEntry(r.ID, key); err == nil {
		t.Fatalf("expected load after delete to fail")
	}
}

func TestAddFileGetFileRoundTripMultiChunk(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	key := testEntryKey(t)

	id := uuid.New().String()
	source := bytes.Repeat([]byte("0123456789"), 300) // 3000 bytes
	want := sha256.Sum256(source)

	res, err := store.AddFile(id, bytes.NewReader(source), int64(len(source)), key, FileWriteOptions{ChunkSize: 1000})
	if err != nil {
		t.Fatalf("add file: %v", err)
	}
	if res.ChunkCount != 3 {
		t.Fatalf("expected 3 chunks, got %d", res.ChunkCount)
	}
	if res.SHA256 != hex.EncodeToString(want[:]) {
		t.Fatalf("sha256 mismatch: got %s want %x", res.SHA256, want)
	}

	var buf bytes.Buffer
	if err := store.GetFile(id, res.ChunkCount, &buf, key, nil); err != nil {
		t.Fatalf("get file: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), source) {
		t.Fatalf("decrypted content mismatch")
	}
}

func TestAddFileSingleChunk(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	key := testEntryKey(t)

	id := uuid.New().String()
	source := []byte("small file")
	res, err := store.AddFile(id, bytes.NewReader(source), int64(len(source)), key, FileWriteOptions{ChunkSize: 4096})
	if err != nil {
		t.Fatalf("add file: %v", err)
	}
	if res.ChunkCount != 1 {
		t.Fatalf("expected 1 chunk, got %d", res.ChunkCount)
	}

	var buf bytes.Buffer
	if err := store.GetFile(id, res.ChunkCount, &buf, key, nil); err != nil {
		t.Fatalf("get file: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), source) {
		t.Fatalf("content mismatch")
	}
}

func TestGetFileDetectsCorruptChunk(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	key := testEntryKey(t)

	id := uuid.New().String()
	source := bytes.Repeat([]byte("x"), 2500)
	res, err := store.AddFile(id, bytes.NewReader(source), int64(len(source)), key, FileWriteOptions{ChunkSize: 1000})
	if err != nil {
		t.Fatalf("add file: %v", err)
	}

	path := store.chunkPath(id, 1, res.ChunkCount)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read chunk: %v", err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write tampered chunk: %v", err)
	}

	var buf bytes.Buffer
	err = store.GetFile(id, res.ChunkCount, &buf, key, nil)
	if err == nil {
		t.Fatalf("expected corrupt chunk error")
	}
}
