package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/veilcask/veilcask/internal/progress"
	"github.com/veilcask/veilcask/internal/recordstore"
	"github.com/veilcask/veilcask/internal/vault"
)

var (
	addTitle    string
	addUsername string
	addPassword string
	addURL      string
	addNotes    string
	addCategory string
	addContent  string
	addChunk    string
	addHashAlg  string
)

var addPasswordCmd = &cobra.Command{
	Use:   "add-password",
	Short: "Add a password record",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(func(v *vault.Vault) error {
			id, err := v.AddPassword(addTitle, addUsername, addPassword, addURL, addNotes, addCategory, nil)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var addNoteCmd = &cobra.Command{
	Use:   "add-note",
	Short: "Add a note record",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault(func(v *vault.Vault) error {
			id, err := v.AddNote(addTitle, addContent, addCategory)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var addFileCmd = &cobra.Command{
	Use:   "add-file <path>",
	Short: "Add a file record, streaming and chunk-encrypting its content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcPath := args[0]
		f, err := os.Open(srcPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", srcPath, err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", srcPath, err)
		}

		title := addTitle
		if title == "" {
			title = filepath.Base(srcPath)
		}
		mimeType := mimeTypeFor(srcPath)

		opts := recordstore.FileWriteOptions{HashAlg: recordstore.ChunkHashAlgorithm(addHashAlg)}
		if addChunk != "" {
			size, perr := parseChunkSize(addChunk)
			if perr != nil {
				return perr
			}
			opts.ChunkSize = size
		}

		pm := progress.NewManager(progress.Options{Quiet: quiet, Verbose: verbose})
		pm.InitFileProgress(info.Size(), filepath.Base(srcPath))
		defer pm.FinishFileProgress()

		return withVault(func(v *vault.Vault) error {
			id, err := v.AddFile(title, filepath.Base(srcPath), mimeType, f, info.Size(), opts, func(processed, total int64) {
				pm.UpdateFileProgress(processed)
			})
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(addPasswordCmd, addNoteCmd, addFileCmd)

	addPasswordCmd.Flags().StringVar(&addTitle, "title", "", "record title")
	addPasswordCmd.Flags().StringVar(&addUsername, "username", "", "login username")
	addPasswordCmd.Flags().StringVar(&addPassword, "password", "", "login password")
	addPasswordCmd.Flags().StringVar(&addURL, "url", "", "login URL")
	addPasswordCmd.Flags().StringVar(&addNotes, "notes", "", "free-form notes")
	addPasswordCmd.Flags().StringVar(&addCategory, "category", "", "category")
	_ = addPasswordCmd.MarkFlagRequired("title")

	addNoteCmd.Flags().StringVar(&addTitle, "title", "", "record title")
	addNoteCmd.Flags().StringVar(&addContent, "content", "", "note content")
	addNoteCmd.Flags().StringVar(&addCategory, "category", "", "category")
	_ = addNoteCmd.MarkFlagRequired("title")

	addFileCmd.Flags().StringVar(&addTitle, "title", "", "record title (defaults to the file name)")
	addFileCmd.Flags().StringVar(&addChunk, "chunk-size", "", "chunk size, e.g. 20MB (defaults to the vault's standard chunk size)")
	addFileCmd.Flags().StringVar(&addHashAlg, "hash", "sha256", "per-chunk hash algorithm (sha256, sha512, sha1, blake3)")
}
