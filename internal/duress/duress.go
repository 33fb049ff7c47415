// Package duress implements the alternate-passphrase decoy mode (C6): a
// second verifier that, when matched, puts the session into a mode that
// shows only pre-baked decoy records and silently discards every mutation.
package duress

import (
	"encoding/base64"

	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// Forbidden lists operations the core must reject while a duress session is
// active, regardless of what the caller asks for (§4.5 point 4).
var Forbidden = map[string]bool{
	"configure_duress":    true,
	"disable_duress":      true,
	"configure_vault_2fa": true,
	"change_passphrase":   true,
}

// CheckForbidden returns DuressForbidden if op is not permitted during a
// duress session.
func CheckForbidden(op string, isDuress bool) error {
	if isDuress && Forbidden[op] {
		return vaulterr.New(vaulterr.DuressForbidden)
	}
	return nil
}

// DeriveVerifier computes the duress verifier for a candidate passphrase,
// using the same KDF parameters as the real vault so a duress unlock costs
// the same KDF work as a real one (§9, duress timing decision in
// DESIGN.md). It uses cryptoprim.Verifier, the same one-way "verifier" label
// the real passphrase's KeyHash uses: the verifier and the duress subkey
// that actually seals decoy content must never be the same derived value,
// or storing the verifier in the clear header would leak the subkey.
func DeriveVerifier(passphrase string, params cryptoprim.KDFParams) (kek []byte, verifier []byte, err error) {
	kek, err = cryptoprim.DeriveKEK(passphrase, params)
	if err != nil {
		return nil, nil, err
	}
	v, err := cryptoprim.Verifier(kek)
	if err != nil {
		cryptoprim.Zero(kek)
		return nil, nil, err
	}
	return kek, v, nil
}

// Verify checks a candidate passphrase's duress verifier in constant time
// against the stored (base64) verifier. Callers attempt both the real and
// duress verifiers for every unlock and surface a single WrongPassphrase on
// a double miss, so a failed guess cannot distinguish "no duress
// configured" from "wrong duress passphrase" (§4.5).
func Verify(storedVerifierB64 string, candidate []byte) bool {
	if storedVerifierB64 == "" {
		return false
	}
	stored, err := base64.StdEncoding.DecodeString(storedVerifierB64)
	if err != nil {
		return false
	}
	return cryptoprim.ConstantTimeEqual(stored, candidate)
}

// EncodeVerifier base64-encodes a verifier for storage in the index.
func EncodeVerifier(v []byte) string { return base64.StdEncoding.EncodeToString(v) }
