// Package cloudconfig persists the vault's two plaintext, non-secret
// sidecar documents: the cloud storage mode config and the sync-state
// sidecar. Neither holds key material or record content, so plain YAML is
// appropriate here (unlike everything else in the vault, which always goes
// through the envelope codec). Grounded on the teacher's
// internal/config/manager.go (GetConfig/SaveConfig, yaml.v2) for the
// storage config and internal/manifest/mainfestStorage.go (yaml.v3,
// Encoder.SetIndent(2)) for the sync-state sidecar.
package cloudconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	yaml2 "gopkg.in/yaml.v2"
	yaml3 "gopkg.in/yaml.v3"

	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/fsatomic"
)

// DriveConfig is the plaintext cloud storage mode config (§6.2).
type DriveConfig struct {
	Mode                string `yaml:"mode"`
	PublicContentFolder string `yaml:"public_content_folder_name,omitempty"`
	// BandwidthLimit throttles Sync transfers, e.g. "5" for 5MB/s. Empty
	// means unthrottled. Parsed by bandwidth.NewLimiter.
	BandwidthLimit string `yaml:"bandwidth_limit,omitempty"`
}

// Manager wraps read/write access to a vault root's plaintext sidecars,
// mirroring the teacher's Manager-wraps-vault-root shape.
type Manager struct {
	root string
}

// NewManager binds a Manager to vaultRoot.
func NewManager(vaultRoot string) *Manager { return &Manager{root: vaultRoot} }

func (m *Manager) driveConfigPath() string {
	return filepath.Join(m.root, constants.DriveConfigName)
}

// LoadDriveConfig reads the cloud storage config, using yaml.v2 the same
// way the teacher's config.Manager.GetConfig does for vault.yaml.
func (m *Manager) LoadDriveConfig() (*DriveConfig, error) {
	data, err := os.ReadFile(m.driveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("read drive config: %w", err)
	}
	var cfg DriveConfig
	if err := yaml2.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse drive config: %w", err)
	}
	return &cfg, nil
}

// SaveDriveConfig writes the cloud storage config atomically.
func (m *Manager) SaveDriveConfig(cfg *DriveConfig) error {
	data, err := yaml2.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal drive config: %w", err)
	}
	return fsatomic.WriteFile(m.driveConfigPath(), data, constants.StandardFilePerms)
}

// EntrySyncState is one record's version-tracking state for the conflict
// resolver (C10).
type EntrySyncState struct {
	LocalVersion   int    `yaml:"local_version"`
	RemoteVersion  int    `yaml:"remote_version"`
	LastSyncedAt   int64  `yaml:"last_synced_at,omitempty"`
	Checksum       string `yaml:"checksum,omitempty"`
}

// ConflictHistoryEntry records a conflict resolution that was skipped or
// applied, for later review.
type ConflictHistoryEntry struct {
	RecordID   string `yaml:"record_id"`
	Type       string `yaml:"type"`
	Resolution string `yaml:"resolution"`
	At         int64  `yaml:"at"`
}

// SyncState is the sync-state sidecar (§6.2).
type SyncState struct {
	EntryVersions   map[string]EntrySyncState `yaml:"entry_versions"`
	LastFullSync    int64                     `yaml:"last_full_sync,omitempty"`
	ConflictHistory []ConflictHistoryEntry    `yaml:"conflict_history,omitempty"`
}

func (m *Manager) syncStatePath() string {
	return filepath.Join(m.root, constants.SyncStateName)
}

// LoadSyncState reads the sync-state sidecar. A missing file is not an
// error: it means no sync has happened yet.
func (m *Manager) LoadSyncState() (*SyncState, error) {
	data, err := os.ReadFile(m.syncStatePath())
	if err != nil {
		if os.IsNotExist(err) {
			return &SyncState{EntryVersions: map[string]EntrySyncState{}}, nil
		}
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	var st SyncState
	if err := yaml3.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse sync state: %w", err)
	}
	if st.EntryVersions == nil {
		st.EntryVersions = map[string]EntrySyncState{}
	}
	return &st, nil
}

// SaveSyncState writes the sync-state sidecar with indented YAML, matching
// the teacher's manifest writer's Encoder.SetIndent(2) convention.
func (m *Manager) SaveSyncState(st *SyncState) error {
	var buf bytes.Buffer
	enc := yaml3.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}
	return fsatomic.WriteFile(m.syncStatePath(), buf.Bytes(), constants.StandardFilePerms)
}
