package fsatomic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/veilcask/veilcask/internal/constants"
)

func TestWriteFileAtomicReplacesContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.enc")
	if err := WriteFile(path, []byte("v1"), constants.SecureFilePerms); err != nil {
		t.Fatalf("write v1: %v", err)
	}
	if err := WriteFile(path, []byte("v2"), constants.SecureFilePerms); err != nil {
		t.Fatalf("write v2: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("got %q, want v2", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be gone after rename")
	}
}

func TestTransactionCommitPromotesStagedFile(t *testing.T) {
	root := t.TempDir()
	txn, err := Begin(root)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.StageCreate("entries/abc.enc", []byte("ciphertext")); err != nil {
		t.Fatalf("stage create: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "entries", "abc.enc"))
	if err != nil {
		t.Fatalf("expected promoted file: %v", err)
	}
	if string(got) != "ciphertext" {
		t.Fatalf("got %q", got)
	}
}

func TestTransactionRollbackDiscardsStagedFile(t *testing.T) {
	root := t.TempDir()
	txn, err := Begin(root)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.StageCreate("entries/abc.enc", []byte("ciphertext")); err != nil {
		t.Fatalf("stage create: %v", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "entries", "abc.enc")); !os.IsNotExist(err) {
		t.Fatalf("file should not exist after rollback")
	}
}

func TestTransactionStageDeleteThenRollbackRestores(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "entries", "victim.enc")
	if err := os.MkdirAll(filepath.Dir(target), constants.SecureDirPerms); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(target, []byte("data"), constants.SecureFilePerms); err != nil {
		t.Fatalf("prep: %v", err)
	}

	txn, err := Begin(root)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.StageDelete("entries/victim.enc"); err != nil {
		t.Fatalf("stage delete: %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("file should be moved to trash before commit/rollback")
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("file should be restored after rollback: %v", err)
	}
}

func TestTransactionStageDeleteIsIdempotent(t *testing.T) {
	root := t.TempDir()
	txn, err := Begin(root)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.StageDelete("entries/does-not-exist.enc"); err != nil {
		t.Fatalf("stage delete missing file: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}
