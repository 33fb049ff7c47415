package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/veilcask/veilcask/internal/vault"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

var twoFAAccount string

var configure2FACmd = &cobra.Command{
	Use:   "configure-2fa",
	Short: "Enable TOTP second factor on the vault, printing the provisioning URI and backup codes once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(func(v *vault.Vault) error {
			setup, err := v.ConfigureVault2FA(twoFAAccount)
			if err != nil {
				return err
			}
			fmt.Println("scan this with an authenticator app:")
			fmt.Println(setup.ProvisioningURI)
			fmt.Println("\nbackup codes (each usable once, store them somewhere safe):")
			for _, c := range setup.BackupCodes {
				fmt.Println(" ", c)
			}
			return nil
		})
	},
}

var disable2FACmd = &cobra.Command{
	Use:   "disable-2fa",
	Short: "Turn off the vault's second factor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(func(v *vault.Vault) error {
			return v.DisableVault2FA()
		})
	},
}

var configureDuressCmd = &cobra.Command{
	Use:   "configure-duress",
	Short: "Set a duress passphrase that opens a decoy vault instead of the real one",
	Long: `Prompts for a duress passphrase (distinct from the real one) and at
least one plausible decoy password entry to seed the decoy vault with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		duressPass, err := vault.PromptNewPassphrase()
		if err != nil {
			return err
		}
		decoys, err := promptDecoys()
		if err != nil {
			return err
		}
		return withVault(func(v *vault.Vault) error {
			return v.ConfigureDuress(duressPass, decoys)
		})
	},
}

var disableDuressCmd = &cobra.Command{
	Use:   "disable-duress",
	Short: "Remove the duress passphrase and decoy vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(func(v *vault.Vault) error {
			return v.DisableDuress()
		})
	},
}

var changePassphraseCmd = &cobra.Command{
	Use:   "change-passphrase",
	Short: "Rotate the vault's real passphrase, re-sealing every record under a fresh key",
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPass, err := vault.PromptPassphrase("Current passphrase")
		if err != nil {
			return err
		}
		newPass, err := vault.PromptNewPassphrase()
		if err != nil {
			return err
		}
		v := vault.Open(vaultPath)
		if err := v.Unlock(oldPass, ""); err != nil {
			if err2 := retryWithTOTP(v, oldPass, err); err2 != nil {
				return friendlyUnlockError(err2)
			}
		}
		defer v.Lock()
		if err := v.ChangePassphrase(oldPass, newPass); err != nil {
			return err
		}
		fmt.Println("passphrase changed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configure2FACmd, disable2FACmd, configureDuressCmd, disableDuressCmd, changePassphraseCmd)
	configure2FACmd.Flags().StringVar(&twoFAAccount, "account", "", "account label shown in the authenticator app")
}

func promptDecoys() ([]vault.DecoyInput, error) {
	var decoys []vault.DecoyInput
	for {
		add, err := vault.ConfirmDestructive("Add a decoy password entry")
		if err != nil {
			return nil, err
		}
		if !add {
			break
		}
		title := promptLine("Decoy title")
		username := promptLine("Decoy username")
		password := promptLine("Decoy password")
		url := promptLine("Decoy URL (optional)")
		decoys = append(decoys, vault.DecoyInput{Title: title, Username: username, Password: password, URL: url})
	}
	if len(decoys) == 0 {
		return nil, fmt.Errorf("at least one decoy entry is required")
	}
	return decoys, nil
}

func promptLine(label string) string {
	p := promptui.Prompt{Label: label}
	v, err := p.Run()
	if err != nil {
		return ""
	}
	return v
}

// retryWithTOTP handles the speculative-Unlock-then-reprompt pattern for
// callers (like change-passphrase) that need the unlocked *Vault itself
// rather than going through withVault.
func retryWithTOTP(v *vault.Vault, pass string, firstErr error) error {
	if !vaulterr.Is(firstErr, vaulterr.Invalid2FA) {
		return firstErr
	}
	code, err := vault.PromptTOTPCode()
	if err != nil {
		return err
	}
	return v.Unlock(pass, code)
}
