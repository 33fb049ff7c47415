package vault

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/veilcask/veilcask/internal/constants"
)

// PromptNewPassphrase asks for a passphrase twice, confirming the two
// entries match, masking input as it is typed. Grounded on the teacher's
// promptui-based config prompts, generalized from vault metadata fields to
// passphrase entry.
func PromptNewPassphrase() (string, error) {
	first := promptui.Prompt{
		Label: "Vault passphrase",
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < constants.MinPassphraseLen {
				return fmt.Errorf("passphrase must be at least %d characters", constants.MinPassphraseLen)
			}
			return nil
		},
	}
	pass, err := first.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	confirm := promptui.Prompt{
		Label: "Confirm passphrase",
		Mask:  '*',
	}
	again, err := confirm.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	if pass != again {
		return "", errors.New("passphrases do not match")
	}
	return pass, nil
}

// PromptPassphrase asks for an existing passphrase once, for unlock.
func PromptPassphrase(label string) (string, error) {
	if label == "" {
		label = "Vault passphrase"
	}
	p := promptui.Prompt{Label: label, Mask: '*'}
	pass, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return pass, nil
}

// PromptTOTPCode asks for a 6-digit (or configured width) second-factor
// code during unlock.
func PromptTOTPCode() (string, error) {
	p := promptui.Prompt{
		Label: "2FA code (or backup code)",
		Validate: func(input string) error {
			if len(input) == 0 {
				return errors.New("code required")
			}
			return nil
		},
	}
	code, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return code, nil
}

// ConfirmDestructive asks a yes/no confirmation for an irreversible
// operation (delete, destruct).
func ConfirmDestructive(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := p.Run()
	if err != nil {
		// promptui returns ErrAbort when the user answers "n".
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return true, nil
}
