package totp

import "testing"

func TestGenerateValidateRoundTrip(t *testing.T) {
	secret, err := GenerateSecret(20)
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	cfg := Config{Secret: secret, Algorithm: SHA1, Digits: 6, Period: 30}

	now := int64(1_700_000_000)
	code, err := Generate(cfg, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digit code, got %q", code)
	}
	ok, err := Validate(cfg, code, now, 1)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !ok {
		t.Fatalf("expected code to validate at generation time")
	}
}

func TestValidateToleratesClockDrift(t *testing.T) {
	secret, _ := GenerateSecret(20)
	cfg := Config{Secret: secret, Algorithm: SHA1, Digits: 6, Period: 30}
	now := int64(1_700_000_000)
	code, _ := Generate(cfg, now)

	// One period later (+30s) is within a ±1 step window.
	ok, err := Validate(cfg, code, now+30, 1)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !ok {
		t.Fatalf("expected code to validate one step later within window")
	}

	// Far outside the window must fail.
	ok, err = Validate(cfg, code, now+300, 1)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ok {
		t.Fatalf("expected code to fail validation far outside window")
	}
}

func TestBackupCodeSingleUse(t *testing.T) {
	codes, err := GenerateBackupCodes(3)
	if err != nil {
		t.Fatalf("generate backup codes: %v", err)
	}
	hashed := make([]string, len(codes))
	for i, c := range codes {
		hashed[i] = HashBackupCode(c)
	}

	remaining, ok := ConsumeBackupCode(hashed, codes[1])
	if !ok {
		t.Fatalf("expected first consumption to succeed")
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining codes, got %d", len(remaining))
	}

	if _, ok := ConsumeBackupCode(remaining, codes[1]); ok {
		t.Fatalf("expected second consumption of same code to fail")
	}
}

func TestBackupCodeFormat(t *testing.T) {
	codes, err := GenerateBackupCodes(5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, c := range codes {
		if len(c) != 9 || c[4] != '-' {
			t.Fatalf("unexpected backup code format: %q", c)
		}
	}
}
