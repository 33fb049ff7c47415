package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veilcask/veilcask/internal/vault"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault",
	Long: `Create a new vault at --vault-path, deriving its real key hierarchy
from a passphrase you are prompted for twice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&forceInit, "force", false, "re-initialize an existing vault, destroying its data")
}

func runInit() error {
	root, err := vault.PrepareVaultPath(vaultPath, "", forceInit)
	if err != nil {
		return err
	}
	pass, err := vault.PromptNewPassphrase()
	if err != nil {
		return err
	}
	if _, err := vault.Init(root, pass); err != nil {
		return err
	}
	fmt.Printf("vault initialized at %s\n", root)
	return nil
}
