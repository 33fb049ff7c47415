// Package totp implements RFC 6238 time-based one-time passwords and
// one-shot hashed backup codes for the vault-level second factor (C7). No
// TOTP library appears anywhere in the retrieval pack, so this is built on
// the standard library's crypto/hmac family (see DESIGN.md).
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash"
	"math"
	"strings"

	"github.com/veilcask/veilcask/internal/constants"
)

// Algorithm selects the HMAC hash TOTP codes are generated with.
type Algorithm string

const (
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA512 Algorithm = "SHA512"
)

func newHasher(alg Algorithm) (func() hash.Hash, error) {
	switch alg {
	case SHA1, "":
		return sha1.New, nil
	case SHA256:
		return sha256.New, nil
	case SHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported totp algorithm: %s", alg)
	}
}

// Config describes one vault's TOTP seed and parameters.
type Config struct {
	Secret    string // base32-encoded, RFC 4648 no padding
	Algorithm Algorithm
	Digits    int
	Period    int // seconds
}

// GenerateSecret returns a fresh random base32 TOTP seed of byteLen raw
// bytes (20 bytes is the RFC 4226 recommendation for HMAC-SHA1).
func GenerateSecret(byteLen int) (string, error) {
	if byteLen <= 0 {
		byteLen = 20
	}
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}

// ProvisioningURI builds an otpauth:// URI suitable for rendering as a QR
// code in an authenticator app.
func ProvisioningURI(cfg Config, issuer, accountName string) string {
	alg := cfg.Algorithm
	if alg == "" {
		alg = SHA1
	}
	digits := cfg.Digits
	if digits == 0 {
		digits = constants.DefaultTOTPDigits
	}
	period := cfg.Period
	if period == 0 {
		period = constants.DefaultTOTPPeriodSeconds
	}
	label := accountName
	if issuer != "" {
		label = issuer + ":" + accountName
	}
	return fmt.Sprintf("otpauth://totp/%s?secret=%s&issuer=%s&algorithm=%s&digits=%d&period=%d",
		label, cfg.Secret, issuer, string(alg), digits, period)
}

func generateCode(cfg Config, counter uint64) (string, error) {
	hasher, err := newHasher(cfg.Algorithm)
	if err != nil {
		return "", err
	}
	digits := cfg.Digits
	if digits == 0 {
		digits = constants.DefaultTOTPDigits
	}
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("decode base32 secret: %w", err)
	}

	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], counter)

	mac := hmac.New(hasher, key)
	mac.Write(counterBytes[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	mod := uint32(math.Pow10(digits))
	code := truncated % mod
	return fmt.Sprintf("%0*d", digits, code), nil
}

// Generate returns the TOTP code for cfg at unixTime.
func Generate(cfg Config, unixTime int64) (string, error) {
	period := cfg.Period
	if period == 0 {
		period = constants.DefaultTOTPPeriodSeconds
	}
	counter := uint64(unixTime) / uint64(period)
	return generateCode(cfg, counter)
}

// Validate checks candidate against cfg at unixTime, tolerating a window of
// ±windowSteps periods to absorb clock drift (§4.6 default ±1 step).
func Validate(cfg Config, candidate string, unixTime int64, windowSteps int) (bool, error) {
	period := cfg.Period
	if period == 0 {
		period = constants.DefaultTOTPPeriodSeconds
	}
	counter := int64(unixTime) / int64(period)
	for delta := -windowSteps; delta <= windowSteps; delta++ {
		c := counter + int64(delta)
		if c < 0 {
			continue
		}
		want, err := generateCode(cfg, uint64(c))
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(candidate)) == 1 {
			return true, nil
		}
	}
	return false, nil
}
