package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veilcask/veilcask/internal/vault"
)

var destructCmd = &cobra.Command{
	Use:   "destruct",
	Short: "Irrecoverably wipe this vault's local state",
	Long: `Zeroizes key material and removes every file this vault root owns:
the index, entries, file chunks, the audit log, and the cloud sidecars.
Does not require unlocking first, and never fails on a file that is
already gone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := vault.ConfirmDestructive(fmt.Sprintf("Permanently destroy the vault at %s", vaultPath))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
		v := vault.Open(vaultPath)
		if err := v.Destruct(); err != nil {
			return err
		}
		fmt.Println("vault destroyed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(destructCmd)
}
