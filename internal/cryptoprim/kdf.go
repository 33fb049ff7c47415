// Package cryptoprim implements the vault's crypto primitives: the
// passphrase key-derivation function, HKDF subkey derivation, AEAD
// encrypt/decrypt, and CSPRNG helpers. Nothing in this package touches
// disk; it is pure functions over byte slices.
package cryptoprim

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"

	"github.com/veilcask/veilcask/internal/constants"
)

// KDFAlgorithm identifies which passphrase KDF produced a key, as persisted
// in the index header so an older vault's parameters can be replayed.
type KDFAlgorithm string

const (
	KDFArgon2id KDFAlgorithm = constants.KDFArgon2id
	KDFScrypt   KDFAlgorithm = constants.KDFScrypt
	KDFPBKDF2   KDFAlgorithm = constants.KDFPBKDF2
)

// KDFParams captures the tunable parameters for whichever algorithm is in
// use. Only the fields relevant to Algorithm are meaningful.
type KDFParams struct {
	Algorithm KDFAlgorithm
	Salt      []byte

	// Argon2id
	Time    uint32
	MemKiB  uint32
	Threads uint8

	// scrypt
	ScryptN int
	ScryptR int
	ScryptP int

	// pbkdf2
	PBKDF2Iterations int

	KeyLen int
}

// DefaultKDFParams returns the parameters init() always writes for new
// vaults: Argon2id with spec-mandated minimums.
func DefaultKDFParams(salt []byte) KDFParams {
	return KDFParams{
		Algorithm: KDFArgon2id,
		Salt:      salt,
		Time:      constants.Argon2Time,
		MemKiB:    constants.Argon2MemoryKiB,
		Threads:   constants.Argon2Threads,
		KeyLen:    constants.Argon2KeyLen,
	}
}

// NewSalt returns fresh cryptographically random salt bytes.
func NewSalt() ([]byte, error) {
	return RandomBytes(constants.SaltLen)
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// DeriveKEK runs the configured passphrase KDF, producing the master
// key-encryption key. Legacy scrypt/pbkdf2 parameters are honored only so
// older index headers remain readable; init always selects Argon2id.
func DeriveKEK(passphrase string, p KDFParams) ([]byte, error) {
	if p.KeyLen == 0 {
		p.KeyLen = constants.Argon2KeyLen
	}
	switch p.Algorithm {
	case KDFArgon2id, "":
		time, mem, threads := p.Time, p.MemKiB, p.Threads
		if time == 0 {
			time = constants.Argon2Time
		}
		if mem == 0 {
			mem = constants.Argon2MemoryKiB
		}
		if threads == 0 {
			threads = constants.Argon2Threads
		}
		return argon2.IDKey([]byte(passphrase), p.Salt, time, mem, threads, uint32(p.KeyLen)), nil
	case KDFScrypt:
		n, r, pp := p.ScryptN, p.ScryptR, p.ScryptP
		if n == 0 {
			n = 1 << 15
		}
		if r == 0 {
			r = 8
		}
		if pp == 0 {
			pp = 1
		}
		return scrypt.Key([]byte(passphrase), p.Salt, n, r, pp, p.KeyLen)
	case KDFPBKDF2:
		iters := p.PBKDF2Iterations
		if iters == 0 {
			iters = 100_000
		}
		return pbkdf2.Key([]byte(passphrase), p.Salt, iters, p.KeyLen, sha256.New), nil
	default:
		return nil, fmt.Errorf("unknown kdf algorithm %q", p.Algorithm)
	}
}

// Subkey labels used as HKDF "info" parameters. Stable across the vault's
// lifetime: changing a label would make every subkey it derives
// unrecoverable.
const (
	LabelIndex    = "index"
	LabelEntry    = "entry"
	LabelMetadata = "metadata"
	LabelAudit    = "audit"
	LabelDuress   = "duress"
	LabelVerifier = "verifier"
)

// DeriveSubkey expands kek into a 32-byte subkey bound to label via
// HKDF-SHA-256. Distinct labels never collide.
func DeriveSubkey(kek []byte, label string) ([]byte, error) {
	r := hkdf.New(sha256.New, kek, nil, []byte(label))
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand %q: %w", label, err)
	}
	return out, nil
}

// Verifier derives the public-in-the-index value that proves a candidate
// passphrase produced the right KEK, without ever storing the passphrase
// or the KEK itself.
func Verifier(kek []byte) ([]byte, error) {
	return DeriveSubkey(kek, LabelVerifier)
}
