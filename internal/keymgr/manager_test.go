package keymgr

import (
	"testing"

	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

func testSubkeys(t *testing.T) *Subkeys {
	t.Helper()
	mk := func() []byte {
		b, err := cryptoprim.RandomBytes(32)
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		return b
	}
	return &Subkeys{Index: mk(), Entry: mk(), Metadata: mk(), Audit: mk(), Duress: mk()}
}

func TestSealedByDefault(t *testing.T) {
	m := New()
	if !m.IsSealed() {
		t.Fatalf("new manager should start sealed")
	}
	if _, err := m.Subkeys(); !vaulterr.Is(err, vaulterr.Locked) {
		t.Fatalf("expected Locked, got %v", err)
	}
}

func TestUnsealThenSealClearsState(t *testing.T) {
	m := New()
	kek, _ := cryptoprim.RandomBytes(32)
	sk := testSubkeys(t)

	m.Unseal(kek, sk, false)
	if m.IsSealed() {
		t.Fatalf("expected unsealed")
	}
	got, err := m.Subkeys()
	if err != nil || got == nil {
		t.Fatalf("subkeys: %v", err)
	}

	m.Seal()
	if !m.IsSealed() {
		t.Fatalf("expected sealed after Seal")
	}
	if _, err := m.Subkeys(); !vaulterr.Is(err, vaulterr.Locked) {
		t.Fatalf("expected Locked after seal, got %v", err)
	}
}

func TestGenerationAdvancesOnLock(t *testing.T) {
	m := New()
	kek, _ := cryptoprim.RandomBytes(32)
	m.Unseal(kek, testSubkeys(t), false)
	gen := m.Generation()

	if err := m.CheckGeneration(gen); err != nil {
		t.Fatalf("expected current generation to pass: %v", err)
	}

	m.Seal()
	if err := m.CheckGeneration(gen); !vaulterr.Is(err, vaulterr.Locked) {
		t.Fatalf("expected stale generation to report Locked, got %v", err)
	}
}

func TestDuressFlagTracked(t *testing.T) {
	m := New()
	kek, _ := cryptoprim.RandomBytes(32)
	m.Unseal(kek, testSubkeys(t), true)
	if !m.IsDuress() {
		t.Fatalf("expected duress session")
	}
	m.Seal()
	if m.IsDuress() {
		t.Fatalf("duress flag should clear on seal")
	}
}
