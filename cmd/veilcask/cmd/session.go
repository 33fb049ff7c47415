package cmd

import (
	"fmt"

	"github.com/veilcask/veilcask/internal/vault"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// openAndUnlock opens the vault at vaultPath and unlocks it, prompting for
// the passphrase and, only if the vault turns out to require one, a second
// factor code. Unlock needs totpCode supplied up front, so the first
// attempt probes with an empty code and reprompts on Invalid2FA rather than
// asking every vault for a code it may not need.
func openAndUnlock() (*vault.Vault, error) {
	v := vault.Open(vaultPath)
	pass, err := vault.PromptPassphrase("")
	if err != nil {
		return nil, err
	}

	err = v.Unlock(pass, "")
	if vaulterr.Is(err, vaulterr.Invalid2FA) {
		code, perr := vault.PromptTOTPCode()
		if perr != nil {
			return nil, perr
		}
		err = v.Unlock(pass, code)
	}
	if err != nil {
		return nil, friendlyUnlockError(err)
	}
	return v, nil
}

func friendlyUnlockError(err error) error {
	switch {
	case vaulterr.Is(err, vaulterr.WrongPassphrase):
		return fmt.Errorf("wrong passphrase")
	case vaulterr.Is(err, vaulterr.Invalid2FA):
		return fmt.Errorf("invalid 2FA code")
	default:
		return err
	}
}

// withVault opens and unlocks the vault, runs fn, and always locks
// afterward regardless of fn's outcome.
func withVault(fn func(v *vault.Vault) error) error {
	v, err := openAndUnlock()
	if err != nil {
		return err
	}
	defer v.Lock()
	return fn(v)
}
