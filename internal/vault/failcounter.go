package vault

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/fsatomic"
)

// failedAttempts is an unauthenticated, plaintext counter of failed unlock
// attempts. It deliberately carries no secret content (just a count and a
// timestamp), since a wrong-passphrase attempt cannot be recorded in the
// encrypted audit log: that requires a key only the correct passphrase
// derives.
type failedAttempts struct {
	Count       int   `json:"count"`
	LastAtMs    int64 `json:"last_at_ms"`
}

func (v *Vault) failCounterPath() string {
	return filepath.Join(v.root, ".failed_attempts")
}

func (v *Vault) recordFailedAttempt() error {
	fa := failedAttempts{}
	if raw, err := os.ReadFile(v.failCounterPath()); err == nil {
		_ = json.Unmarshal(raw, &fa)
	}
	fa.Count++
	fa.LastAtMs = nowMs()
	data, err := json.Marshal(fa)
	if err != nil {
		return err
	}
	return fsatomic.WriteFile(v.failCounterPath(), data, constants.StandardFilePerms)
}

// ResetFailedAttempts clears the counter after a successful unlock.
func (v *Vault) ResetFailedAttempts() error {
	return fsatomic.WriteFile(v.failCounterPath(), []byte(`{"count":0,"last_at_ms":0}`), constants.StandardFilePerms)
}

// FailedAttemptCount reports the current counter value, for CLI display or
// a lockout policy.
func (v *Vault) FailedAttemptCount() int {
	raw, err := os.ReadFile(v.failCounterPath())
	if err != nil {
		return 0
	}
	var fa failedAttempts
	if err := json.Unmarshal(raw, &fa); err != nil {
		return 0
	}
	return fa.Count
}
