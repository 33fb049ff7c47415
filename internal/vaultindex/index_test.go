package vaultindex

import (
	"path/filepath"
	"testing"

	"github.com/veilcask/veilcask/internal/cryptoprim"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	salt, err := cryptoprim.NewSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	params := cryptoprim.DefaultKDFParams(salt)
	kek, err := cryptoprim.DeriveKEK("correct horse battery staple", params)
	if err != nil {
		t.Fatalf("derive kek: %v", err)
	}
	indexKey, err := cryptoprim.DeriveSubkey(kek, cryptoprim.LabelIndex)
	if err != nil {
		t.Fatalf("derive index key: %v", err)
	}

	idx := New()
	idx.Entries["rec-1"] = Entry{TitleEncrypted: "whatever", EntryType: EntryNote, Created: 1, Modified: 1}
	idx.Metadata.EntryCount = 1

	hdr := HeaderFromParams(params)
	if err := store.Save(idx, salt, hdr, indexKey); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !store.Exists() {
		t.Fatalf("expected index file to exist at %s", store.Path())
	}

	gotSalt, gotHdr, err := store.ReadHeader()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if string(gotSalt) != string(salt) {
		t.Fatalf("salt mismatch")
	}
	reParams := ParamsFromHeader(gotHdr, gotSalt)
	reKEK, err := cryptoprim.DeriveKEK("correct horse battery staple", reParams)
	if err != nil {
		t.Fatalf("re-derive kek: %v", err)
	}
	reIndexKey, err := cryptoprim.DeriveSubkey(reKEK, cryptoprim.LabelIndex)
	if err != nil {
		t.Fatalf("re-derive index key: %v", err)
	}

	loaded, err := store.Load(reIndexKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Metadata.EntryCount != 1 {
		t.Fatalf("entry count mismatch: %d", loaded.Metadata.EntryCount)
	}
	if _, ok := loaded.Entries["rec-1"]; !ok {
		t.Fatalf("expected rec-1 in loaded entries")
	}
}

func TestLoadFailsWithWrongKey(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root))

	salt, _ := cryptoprim.NewSalt()
	params := cryptoprim.DefaultKDFParams(salt)
	kek, _ := cryptoprim.DeriveKEK("right-passphrase", params)
	indexKey, _ := cryptoprim.DeriveSubkey(kek, cryptoprim.LabelIndex)

	idx := New()
	if err := store.Save(idx, salt, HeaderFromParams(params), indexKey); err != nil {
		t.Fatalf("save: %v", err)
	}

	wrongKEK, _ := cryptoprim.DeriveKEK("wrong-passphrase", params)
	wrongIndexKey, _ := cryptoprim.DeriveSubkey(wrongKEK, cryptoprim.LabelIndex)
	if _, err := store.Load(wrongIndexKey); err == nil {
		t.Fatalf("expected load with wrong key to fail")
	}
}
