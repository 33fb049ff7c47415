package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	vaultPath string
	quiet     bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "veilcask",
	Short: "VeilCask - a personal, offline-first encrypted secret vault",
	Long: `VeilCask stores passwords, notes, and files in a single encrypted vault
on disk, with an optional duress passphrase, TOTP second factor, and
best-effort cloud sync against a pluggable object-store provider.`,
}

// Execute adds every subcommand to rootCmd and runs it. Called once from
// main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	home, err := os.UserHomeDir()
	defaultRoot := ".veilcask"
	if err == nil {
		defaultRoot = filepath.Join(home, ".veilcask")
	}
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault-path", defaultRoot, "path to the vault directory")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "disable progress bars and reduce output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so a command
// mid-transfer (sync, add-file, get-file) can unwind cleanly instead of
// leaving a partial chunk write.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\ninterrupted, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
