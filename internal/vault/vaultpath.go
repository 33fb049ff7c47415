package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/veilcask/veilcask/internal/constants"
)

// PrepareVaultPath resolves vaultName under vaultPath to an absolute path
// and checks whether a vault index already exists there, refusing to
// proceed unless forceInit is set. Grounded on the teacher's vault path
// preparation helper, generalized from the teacher's ".sietch" marker
// directory to this vault's single index file.
func PrepareVaultPath(vaultPath, vaultName string, forceInit bool) (string, error) {
	abs, err := filepath.Abs(filepath.Join(vaultPath, vaultName))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	indexPath := filepath.Join(abs, constants.IndexFileName)
	if _, err := os.Stat(indexPath); err == nil {
		if !forceInit {
			return "", fmt.Errorf("vault already exists at %s (use --force to re-initialize, destroying existing data)", abs)
		}
	}
	return abs, nil
}
