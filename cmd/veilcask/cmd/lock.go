package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "No-op: every command already locks the vault on exit",
	Long: `This CLI has no long-running session to lock: every other command
opens the vault, performs its one operation, and locks it again before
exiting. This command exists only so the verb from the command surface has
somewhere to land, and always reports success.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("vault is not left unlocked between commands")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
}
