package duress

import (
	"testing"

	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

func TestDeriveAndVerifyRoundTrip(t *testing.T) {
	salt, _ := cryptoprim.NewSalt()
	params := cryptoprim.DefaultKDFParams(salt)

	kek, verifier, err := DeriveVerifier("duress-pass", params)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	defer cryptoprim.Zero(kek)
	stored := EncodeVerifier(verifier)

	_, candidate, err := DeriveVerifier("duress-pass", params)
	if err != nil {
		t.Fatalf("derive candidate: %v", err)
	}
	if !Verify(stored, candidate) {
		t.Fatalf("expected matching duress passphrase to verify")
	}

	_, wrong, err := DeriveVerifier("not-the-duress-pass", params)
	if err != nil {
		t.Fatalf("derive wrong: %v", err)
	}
	if Verify(stored, wrong) {
		t.Fatalf("expected mismatched duress passphrase to fail verification")
	}
}

func TestCheckForbiddenBlocksConfigDuringDuress(t *testing.T) {
	if err := CheckForbidden("configure_vault_2fa", true); !vaulterr.Is(err, vaulterr.DuressForbidden) {
		t.Fatalf("expected DuressForbidden, got %v", err)
	}
	if err := CheckForbidden("configure_vault_2fa", false); err != nil {
		t.Fatalf("expected no error outside duress, got %v", err)
	}
	if err := CheckForbidden("list", true); err != nil {
		t.Fatalf("list should be permitted during duress, got %v", err)
	}
}
