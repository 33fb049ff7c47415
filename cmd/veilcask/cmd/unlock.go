package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Verify the vault passphrase (and 2FA code, if configured)",
	Long: `Checks that the supplied passphrase (and second factor, if the vault
requires one) unlocks the vault, then locks it again. Every other command
unlocks and locks the vault itself for the duration of that one operation;
this command exists to let a user confirm credentials without performing
one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openAndUnlock()
		if err != nil {
			return err
		}
		defer v.Lock()
		if v.IsDuress() {
			fmt.Println("unlocked (duress)")
		} else {
			fmt.Println("unlocked")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unlockCmd)
}
