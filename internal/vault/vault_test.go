package vault

import (
	"bytes"
	"testing"

	"github.com/veilcask/veilcask/internal/recordstore"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

const testPass = "C0rrect!Horse9Battery"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	root := t.TempDir()
	v, err := Init(root, testPass)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	return v
}

func TestInitThenUnlockWrongPassphrase(t *testing.T) {
	root := t.TempDir()
	if _, err := Init(root, testPass); err != nil {
		t.Fatalf("init: %v", err)
	}
	v := Open(root)
	if err := v.Unlock("definitely not it 1", ""); !vaulterr.Is(err, vaulterr.WrongPassphrase) {
		t.Fatalf("expected WrongPassphrase, got %v", err)
	}
}

func TestInitTwiceFails(t *testing.T) {
	root := t.TempDir()
	if _, err := Init(root, testPass); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if _, err := Init(root, testPass); !vaulterr.Is(err, vaulterr.AlreadyExists) {
		t.Fatalf("expected AlreadyExists on re-init, got %v", err)
	}
}

func TestInitRejectsWeakPassphrase(t *testing.T) {
	root := t.TempDir()
	if _, err := Init(root, "weak"); !vaulterr.Is(err, vaulterr.WeakPassphrase) {
		t.Fatalf("expected WeakPassphrase, got %v", err)
	}
}

func TestAddPasswordGetRoundTrip(t *testing.T) {
	v := newTestVault(t)
	id, err := v.AddPassword("GitHub", "octocat", "hunter2", "https://github.com", "", "dev", nil)
	if err != nil {
		t.Fatalf("add password: %v", err)
	}
	rec, err := v.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Title != "GitHub" || rec.Password != "hunter2" {
		t.Fatalf("round trip mismatch: %+v", rec)
	}
}

func TestAddNoteGetRoundTrip(t *testing.T) {
	v := newTestVault(t)
	id, err := v.AddNote("Recovery phrase", "abandon abandon ...", "crypto")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	rec, err := v.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Content != "abandon abandon ..." {
		t.Fatalf("content mismatch: %+v", rec)
	}
}

func TestAddFileGetFileRoundTrip(t *testing.T) {
	v := newTestVault(t)
	source := bytes.Repeat([]byte("secret-bytes"), 500)
	id, err := v.AddFile("backup.bin", "backup.bin", "application/octet-stream", bytes.NewReader(source), int64(len(source)), recordstore.FileWriteOptions{ChunkSize: 1000}, nil)
	if err != nil {
		t.Fatalf("add file: %v", err)
	}
	var buf bytes.Buffer
	if err := v.GetFile(id, &buf, nil); err != nil {
		t.Fatalf("get file: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), source) {
		t.Fatalf("content mismatch")
	}
}

func TestListAndSearch(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.AddPassword("GitHub", "octocat", "hunter2", "", "", "dev", nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := v.AddNote("Taxes 2025", "...", "finance"); err != nil {
		t.Fatalf("add: %v", err)
	}

	all, err := v.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}

	hits, err := v.Search("github")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "GitHub" {
		t.Fatalf("expected one GitHub hit, got %+v", hits)
	}
}

func TestUpdateAndToggleFavorite(t *testing.T) {
	v := newTestVault(t)
	id, err := v.AddPassword("GitHub", "octocat", "hunter2", "", "", "dev", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := v.Update(id, func(rec *recordstore.Record) { rec.Password = "new-password" }); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, err := v.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Password != "new-password" {
		t.Fatalf("update did not persist: %+v", rec)
	}

	if err := v.ToggleFavorite(id); err != nil {
		t.Fatalf("toggle favorite: %v", err)
	}
	items, err := v.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !items[0].Favorite {
		t.Fatalf("expected favorite flag set")
	}
}

func TestDeleteIsIdempotentForMissingID(t *testing.T) {
	v := newTestVault(t)
	id, err := v.AddPassword("GitHub", "octocat", "hunter2", "", "", "dev", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := v.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := v.Get(id); !vaulterr.Is(err, vaulterr.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
	if err := v.Delete("not-a-real-id"); !vaulterr.Is(err, vaulterr.NotFound) {
		t.Fatalf("expected NotFound deleting a missing id, got %v", err)
	}
}

func TestLockedVaultRejectsOperations(t *testing.T) {
	root := t.TempDir()
	if _, err := Init(root, testPass); err != nil {
		t.Fatalf("init: %v", err)
	}
	v := Open(root)
	if _, err := v.Get("anything"); !vaulterr.Is(err, vaulterr.Locked) {
		t.Fatalf("expected Locked before unlock, got %v", err)
	}
}

func TestDuressUnlockHidesRealEntriesAndDiscardsMutations(t *testing.T) {
	v := newTestVault(t)
	realID, err := v.AddPassword("Real Bank", "me", "realpass", "", "", "", nil)
	if err != nil {
		t.Fatalf("add real: %v", err)
	}
	const duressPass = "D3coy!PassPhrase42"
	if err := v.ConfigureDuress(duressPass, []DecoyInput{{Title: "Email", Username: "me@example.com", Password: "decoy-pass"}}); err != nil {
		t.Fatalf("configure duress: %v", err)
	}
	if err := v.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}

	d := Open(v.root)
	if err := d.Unlock(duressPass, ""); err != nil {
		t.Fatalf("duress unlock: %v", err)
	}
	if !d.IsDuress() {
		t.Fatalf("expected duress session")
	}

	items, err := d.List()
	if err != nil {
		t.Fatalf("list under duress: %v", err)
	}
	for _, it := range items {
		if it.ID == realID {
			t.Fatalf("real entry %s visible in duress session", realID)
		}
	}

	scratchID, err := d.AddPassword("New secret", "u", "p", "", "", "", nil)
	if err != nil {
		t.Fatalf("add under duress: %v", err)
	}
	if _, err := d.Get(scratchID); err != nil {
		t.Fatalf("get scratch record within same session: %v", err)
	}
	if err := d.Lock(); err != nil {
		t.Fatalf("lock duress session: %v", err)
	}

	real := Open(v.root)
	if err := real.Unlock(testPass, ""); err != nil {
		t.Fatalf("real unlock: %v", err)
	}
	if _, err := real.Get(scratchID); !vaulterr.Is(err, vaulterr.NotFound) {
		t.Fatalf("duress-added record must not persist into the real vault, got %v", err)
	}
	if _, err := real.Get(realID); err != nil {
		t.Fatalf("real entry should still be retrievable: %v", err)
	}
}

func TestConfigureDuressForbiddenDuringDuressSession(t *testing.T) {
	v := newTestVault(t)
	const duressPass = "D3coy!PassPhrase42"
	if err := v.ConfigureDuress(duressPass, []DecoyInput{{Title: "Email"}}); err != nil {
		t.Fatalf("configure duress: %v", err)
	}
	if err := v.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}

	d := Open(v.root)
	if err := d.Unlock(duressPass, ""); err != nil {
		t.Fatalf("duress unlock: %v", err)
	}
	if err := d.ConfigureDuress("yet another phrase 8", nil); !vaulterr.Is(err, vaulterr.DuressForbidden) {
		t.Fatalf("expected DuressForbidden, got %v", err)
	}
}

func TestTwoFactorRequiredOnUnlock(t *testing.T) {
	v := newTestVault(t)
	setup, err := v.ConfigureVault2FA("me@example.com")
	if err != nil {
		t.Fatalf("configure 2fa: %v", err)
	}
	if setup.ProvisioningURI == "" || len(setup.BackupCodes) == 0 {
		t.Fatalf("expected provisioning URI and backup codes")
	}
	if err := v.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}

	v2 := Open(v.root)
	if err := v2.Unlock(testPass, ""); !vaulterr.Is(err, vaulterr.Invalid2FA) {
		t.Fatalf("expected Invalid2FA without a code, got %v", err)
	}

	code := setup.BackupCodes[0]
	if err := v2.Unlock(testPass, code); err != nil {
		t.Fatalf("unlock with backup code: %v", err)
	}
}

func TestChangePassphraseRotatesKeysAndPreservesData(t *testing.T) {
	v := newTestVault(t)
	id, err := v.AddPassword("GitHub", "octocat", "hunter2", "", "", "", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	const newPass = "N3w!StrongPassphrase99"
	if err := v.ChangePassphrase(testPass, newPass); err != nil {
		t.Fatalf("change passphrase: %v", err)
	}
	if err := v.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}

	v2 := Open(v.root)
	if err := v2.Unlock(testPass, ""); !vaulterr.Is(err, vaulterr.WrongPassphrase) {
		t.Fatalf("old passphrase should no longer unlock, got %v", err)
	}
	if err := v2.Unlock(newPass, ""); err != nil {
		t.Fatalf("unlock with new passphrase: %v", err)
	}
	rec, err := v2.Get(id)
	if err != nil {
		t.Fatalf("get after rotation: %v", err)
	}
	if rec.Password != "hunter2" {
		t.Fatalf("data mismatch after rotation: %+v", rec)
	}
}
