package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veilcask/veilcask/internal/progress"
	"github.com/veilcask/veilcask/internal/vault"
)

var getOutPath string

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a password or note record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		return withVault(func(v *vault.Vault) error {
			rec, err := v.Get(id)
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		})
	},
}

var getFileCmd = &cobra.Command{
	Use:   "get-file <id>",
	Short: "Decrypt a file record to --out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if getOutPath == "" {
			return fmt.Errorf("--out is required")
		}
		out, err := os.OpenFile(getOutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("create %s: %w", getOutPath, err)
		}
		defer out.Close()

		pm := progress.NewManager(progress.Options{Quiet: quiet, Verbose: verbose})
		pm.InitFileProgress(0, id)
		defer pm.FinishFileProgress()

		return withVault(func(v *vault.Vault) error {
			return v.GetFile(id, out, func(processed, total int64) {
				pm.UpdateFileProgress(processed)
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd, getFileCmd)
	getFileCmd.Flags().StringVar(&getOutPath, "out", "", "destination path for the decrypted file")
}
