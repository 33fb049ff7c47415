package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veilcask/veilcask/internal/recordstore"
	"github.com/veilcask/veilcask/internal/vault"
)

var (
	updateTitle    string
	updateUsername string
	updatePassword string
	updateURL      string
	updateNotes    string
	updateCategory string
	updateContent  string
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of an existing password or note record",
	Long:  "Only flags explicitly passed are applied; everything else is left unchanged.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		return withVault(func(v *vault.Vault) error {
			return v.Update(id, func(rec *recordstore.Record) {
				if cmd.Flags().Changed("title") {
					rec.Title = updateTitle
				}
				if cmd.Flags().Changed("username") {
					rec.Username = updateUsername
				}
				if cmd.Flags().Changed("password") {
					rec.Password = updatePassword
				}
				if cmd.Flags().Changed("url") {
					rec.URL = updateURL
				}
				if cmd.Flags().Changed("notes") {
					rec.Notes = updateNotes
				}
				if cmd.Flags().Changed("category") {
					rec.Category = updateCategory
				}
				if cmd.Flags().Changed("content") {
					rec.Content = updateContent
				}
			})
		})
	},
}

var toggleFavoriteCmd = &cobra.Command{
	Use:   "toggle-favorite <id>",
	Short: "Flip a record's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		return withVault(func(v *vault.Vault) error {
			return v.ToggleFavorite(id)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		ok, err := vault.ConfirmDestructive(fmt.Sprintf("Delete %s permanently", id))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
		return withVault(func(v *vault.Vault) error {
			return v.Delete(id)
		})
	},
}

func init() {
	rootCmd.AddCommand(updateCmd, toggleFavoriteCmd, deleteCmd)

	updateCmd.Flags().StringVar(&updateTitle, "title", "", "new title")
	updateCmd.Flags().StringVar(&updateUsername, "username", "", "new username")
	updateCmd.Flags().StringVar(&updatePassword, "password", "", "new password")
	updateCmd.Flags().StringVar(&updateURL, "url", "", "new URL")
	updateCmd.Flags().StringVar(&updateNotes, "notes", "", "new notes")
	updateCmd.Flags().StringVar(&updateCategory, "category", "", "new category")
	updateCmd.Flags().StringVar(&updateContent, "content", "", "new note content")
}
