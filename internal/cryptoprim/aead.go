package cryptoprim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AlgID identifies the AEAD algorithm an envelope was sealed with. Values
// are stable on-disk identifiers, never renumbered.
type AlgID byte

const (
	AlgXChaCha20Poly1305 AlgID = 0x01
	AlgAES256GCM         AlgID = 0x02
)

// NonceLen returns the nonce length required by alg.
func NonceLen(alg AlgID) (int, error) {
	switch alg {
	case AlgXChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX, nil
	case AlgAES256GCM:
		return 12, nil
	default:
		return 0, fmt.Errorf("unknown alg id %#x", alg)
	}
}

// AEAD wraps an algorithm-selected cipher.AEAD behind a single interface so
// callers never branch on AlgID themselves.
type AEAD struct {
	alg AlgID
	aead cipher.AEAD
}

// NewAEAD builds an AEAD for the given algorithm and 32-byte key.
func NewAEAD(alg AlgID, key []byte) (*AEAD, error) {
	switch alg {
	case AlgXChaCha20Poly1305:
		a, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("init xchacha20poly1305: %w", err)
		}
		return &AEAD{alg: alg, aead: a}, nil
	case AlgAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("init aes cipher: %w", err)
		}
		a, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("init aes-gcm: %w", err)
		}
		return &AEAD{alg: alg, aead: a}, nil
	default:
		return nil, fmt.Errorf("unknown alg id %#x", alg)
	}
}

// Seal encrypts plaintext, binding aad as associated data, using a fresh
// random nonce. Returns the nonce and the ciphertext-with-tag separately so
// the caller (envelope codec) controls layout.
func (a *AEAD) Seal(plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	nonce, err = RandomBytes(a.aead.NonceSize())
	if err != nil {
		return nil, nil, err
	}
	ciphertext = a.aead.Seal(nil, nonce, plaintext, aad)
	return nonce, ciphertext, nil
}

// Open decrypts ciphertext sealed with Seal, verifying aad and the tag. A
// tampered ciphertext, nonce, or aad all produce the same generic failure by
// design: AEAD must not distinguish tamper sites.
func (a *AEAD) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	pt, err := a.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("aead open failed: %w", err)
	}
	return pt, nil
}

// ConstantTimeEqual compares two byte slices without leaking timing
// information about where they first differ.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zero overwrites b with zero bytes in place. Call on every buffer that held
// key material, a passphrase, or other plaintext before it goes out of
// scope.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
