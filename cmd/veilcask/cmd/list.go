package cmd

import (
	"github.com/spf13/cobra"

	"github.com/veilcask/veilcask/internal/vault"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every record's summary (title decrypted, content not)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(func(v *vault.Vault) error {
			items, err := v.List()
			if err != nil {
				return err
			}
			printListItems(items)
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Case-insensitive substring search over titles and categories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]
		return withVault(func(v *vault.Vault) error {
			items, err := v.Search(query)
			if err != nil {
				return err
			}
			printListItems(items)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd, searchCmd)
}
