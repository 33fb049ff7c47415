package totp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const backupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateBackupCodes returns n fresh one-shot backup codes in "XXXX-XXXX"
// format, drawn from [A-Z0-9].
func GenerateBackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	for i := range codes {
		c, err := generateOneBackupCode()
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}
	return codes, nil
}

func generateOneBackupCode() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	var sb strings.Builder
	for i, b := range raw {
		if i == 4 {
			sb.WriteByte('-')
		}
		sb.WriteByte(backupCodeAlphabet[int(b)%len(backupCodeAlphabet)])
	}
	return sb.String(), nil
}

// HashBackupCode returns the stored form of a backup code: a plain
// SHA-256 digest is sufficient here, since backup codes are high-entropy
// random tokens rather than user-chosen secrets, so no memory-hard KDF is
// needed to resist offline guessing.
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(code)))
	return hex.EncodeToString(sum[:])
}

// ConsumeBackupCode checks candidate against the stored hashed codes. On a
// match it returns the remaining code list with that entry removed (single
// use, §4.6) and ok=true; a consumed code never matches again.
func ConsumeBackupCode(hashedCodes []string, candidate string) (remaining []string, ok bool) {
	target := HashBackupCode(candidate)
	matchedIndex := -1
	for i, h := range hashedCodes {
		if subtle.ConstantTimeCompare([]byte(h), []byte(target)) == 1 {
			matchedIndex = i
			break
		}
	}
	if matchedIndex == -1 {
		return hashedCodes, false
	}
	remaining = make([]string, 0, len(hashedCodes)-1)
	remaining = append(remaining, hashedCodes[:matchedIndex]...)
	remaining = append(remaining, hashedCodes[matchedIndex+1:]...)
	return remaining, true
}
