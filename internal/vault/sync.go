package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/veilcask/veilcask/internal/audit"
	"github.com/veilcask/veilcask/internal/bandwidth"
	"github.com/veilcask/veilcask/internal/cloudconfig"
	"github.com/veilcask/veilcask/internal/cloudsync"
	"github.com/veilcask/veilcask/internal/conflict"
	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/envelope"
	"github.com/veilcask/veilcask/internal/fsatomic"
	"github.com/veilcask/veilcask/internal/vaultindex"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// ConfigureCloudProvider binds a cloud object-store adapter to this vault
// and persists the storage mode config (§4.8). Switching providers or modes
// never migrates existing remote objects. Any bandwidth limit already on
// record carries over to the new client.
func (v *Vault) ConfigureCloudProvider(p cloudsync.Provider, mode cloudsync.StorageMode, publicFolder string) error {
	limit := ""
	if existing, err := v.cloud.LoadDriveConfig(); err == nil {
		limit = existing.BandwidthLimit
	}
	if err := v.cloud.SaveDriveConfig(&cloudconfig.DriveConfig{Mode: string(mode), PublicContentFolder: publicFolder, BandwidthLimit: limit}); err != nil {
		return err
	}
	client := cloudsync.NewClient(p, mode, publicFolder)
	if limit != "" {
		limiter, lerr := bandwidth.NewLimiter(limit)
		if lerr != nil {
			return lerr
		}
		client = client.WithLimiter(limiter)
	}
	v.mu.Lock()
	v.syncClient = client
	v.mu.Unlock()
	return nil
}

// SetBandwidthLimit updates the throttle applied to this vault's cloud sync
// transfers (e.g. "5" for 5MB/s) and persists it alongside the storage mode
// config. An empty limit removes throttling. Takes effect on the current
// session's client immediately, without requiring ConfigureCloudProvider to
// be called again.
func (v *Vault) SetBandwidthLimit(limit string) error {
	cfg, err := v.cloud.LoadDriveConfig()
	if err != nil {
		return err
	}
	cfg.BandwidthLimit = limit
	if err := v.cloud.SaveDriveConfig(cfg); err != nil {
		return err
	}
	var limiter *bandwidth.Limiter
	if limit != "" {
		limiter, err = bandwidth.NewLimiter(limit)
		if err != nil {
			return err
		}
	}
	v.mu.Lock()
	if v.syncClient != nil {
		v.syncClient = v.syncClient.WithLimiter(limiter)
	}
	v.mu.Unlock()
	return nil
}

// SaveCloudToken seals tok under the current session's metadata subkey and
// persists it at drive_token.enc, matching §4.8's "encrypted under the
// metadata subkey" token-at-rest requirement.
func (v *Vault) SaveCloudToken(tok cloudsync.Token) error {
	sk, err := v.keys.Subkeys()
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	env, err := envelope.Seal(cryptoprim.AlgXChaCha20Poly1305, sk.Metadata, envelope.Context{Purpose: envelope.PurposeMetadata}, plaintext)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	return fsatomic.WriteFile(v.tokenPath(), []byte(env.MarshalText()), constants.SecureFilePerms)
}

// LoadCloudToken decrypts the persisted cloud token, or NotFound if none
// has been acquired yet.
func (v *Vault) LoadCloudToken() (*cloudsync.Token, error) {
	sk, err := v.keys.Subkeys()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(v.tokenPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vaulterr.New(vaulterr.NotFound)
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	env, err := envelope.UnmarshalText(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse token envelope: %w", err)
	}
	pt, err := env.Open(sk.Metadata, envelope.Context{Purpose: envelope.PurposeMetadata})
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.AeadOpenFailed, err)
	}
	var tok cloudsync.Token
	if err := json.Unmarshal(pt, &tok); err != nil {
		return nil, fmt.Errorf("parse token json: %w", err)
	}
	return &tok, nil
}

func (v *Vault) tokenPath() string {
	return v.root + "/" + constants.DriveTokenFileName
}

// ConnectCloudProvider runs the PKCE loopback authorization flow against
// ep and persists the resulting token, so a caller only has to supply an
// openAuthURL callback (typically "open the user's browser") (§4.8 step 1).
func (v *Vault) ConnectCloudProvider(ctx context.Context, ep cloudsync.OAuthEndpoints, openAuthURL func(authURL string) error) error {
	if _, _, err := v.beginOp("connect_cloud"); err != nil {
		return err
	}
	tok, err := cloudsync.AcquireToken(ctx, ep, openAuthURL)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ReauthRequired, err)
	}
	return v.SaveCloudToken(*tok)
}

// validToken returns the persisted token, refreshing it first if it is
// within five minutes of expiry (§4.8 step 4). A refresh failure surfaces
// as ReauthRequired so the caller knows to run ConnectCloudProvider again.
func (v *Vault) validToken(ctx context.Context, ep cloudsync.OAuthEndpoints) (*cloudsync.Token, error) {
	tok, err := v.LoadCloudToken()
	if err != nil {
		return nil, err
	}
	if !cloudsync.NeedsRefresh(*tok, nowSeconds()) {
		return tok, nil
	}
	fresh, err := cloudsync.RefreshToken(ctx, ep, tok.RefreshToken)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ReauthRequired, err)
	}
	if err := v.SaveCloudToken(*fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func nowSeconds() int64 { return nowMs() / 1000 }

// SyncResult summarizes one sync() call (§6.1 SyncSummary).
type SyncResult struct {
	Uploaded          int
	ConflictsResolved int
	ConflictsSkipped  int
	Errors            []string
}

// Sync pushes every locally-changed record to the configured cloud provider
// and reconciles per-record conflicts against the sync-state sidecar
// (§4.8, §4.9). It never pulls remote content into the local vault in this
// pass: a ModifiedBoth conflict resolved to KeepRemote is recorded as
// needing restore and left for a follow-up index-backup restore flow,
// since fetching and re-decrypting an arbitrary remote record is the
// restore path's job (§4.8), not sync's.
//
// In a duress session this simulates success without contacting the
// provider or touching the sync-state sidecar (§4.5 point 2).
func (v *Vault) Sync(ctx context.Context) (*SyncResult, error) {
	s, idx, err := v.beginOp("sync")
	if err != nil {
		return nil, err
	}
	if s.duress {
		return &SyncResult{}, nil
	}

	v.mu.Lock()
	client := v.syncClient
	v.mu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("cloud sync is not configured; call ConfigureCloudProvider first")
	}

	st, err := v.cloud.LoadSyncState()
	if err != nil {
		return nil, err
	}

	local := map[string]conflict.RecordState{}
	for id, e := range idx.Entries {
		checksum, cerr := v.checksumEntry(id, e, s.sk.Entry)
		if cerr != nil {
			continue // unreadable local record: surfaced on get(), not sync
		}
		local[id] = conflict.RecordState{RecordID: id, Present: true, Modified: e.Modified, Checksum: checksum, CreatedAt: e.Created}
	}
	remote := map[string]conflict.RecordState{}
	for id, rv := range st.EntryVersions {
		remote[id] = conflict.RecordState{RecordID: id, Present: rv.RemoteVersion > 0, Modified: rv.LastSyncedAt, Checksum: rv.Checksum, CreatedAt: local[id].CreatedAt}
	}

	result := &SyncResult{}
	conflicts := conflict.DetectAll(local, remote)
	for _, c := range conflicts {
		strategy := conflict.ChooseStrategy(c)
		winner, rerr := conflict.Resolve(c, strategy)
		if rerr != nil {
			conflict.RecordHistory(st, c.RecordID, c.Type, strategy, nowMs())
			result.ConflictsSkipped++
			continue
		}
		if winner.RecordID == "" {
			winner.RecordID = c.RecordID
		}
		if winner.Checksum == c.Local.Checksum && c.Local.Present {
			if err := v.uploadEntry(ctx, client, c.RecordID, idx.Entries[c.RecordID], s.sk.Entry); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			st.EntryVersions[c.RecordID] = cloudconfig.EntrySyncState{
				LocalVersion: st.EntryVersions[c.RecordID].LocalVersion + 1, RemoteVersion: st.EntryVersions[c.RecordID].RemoteVersion + 1,
				LastSyncedAt: nowMs(), Checksum: c.Local.Checksum,
			}
			result.Uploaded++
		} else {
			// Remote wins but this pass does not restore content locally.
			conflict.RecordHistory(st, c.RecordID, c.Type, strategy, nowMs())
			result.ConflictsSkipped++
			continue
		}
		conflict.RecordHistory(st, c.RecordID, c.Type, strategy, nowMs())
		result.ConflictsResolved++
	}

	// Upload anything never-synced-before that DetectAll already classified
	// above; entries fully in sync need no further work.
	st.LastFullSync = nowMs()
	if err := v.cloud.SaveSyncState(st); err != nil {
		return result, err
	}

	if raw, rerr := os.ReadFile(v.index.Path()); rerr == nil {
		_ = client.BackupIndex(ctx, raw)
	}

	_ = v.appendAudit(audit.EntryUpdated, "", "sync")
	return result, nil
}

func (v *Vault) checksumEntry(id string, e vaultindex.Entry, entryKey []byte) (string, error) {
	rec, err := v.records.LoadEntry(id, entryKey)
	if err != nil {
		return "", err
	}
	return conflict.CanonicalChecksum(rec)
}

func (v *Vault) uploadEntry(ctx context.Context, client *cloudsync.Client, id string, e vaultindex.Entry, entryKey []byte) error {
	if e.EntryType == vaultindex.EntryFile {
		chunks, err := v.records.ReadSealedChunks(id, e.ChunkCount)
		if err != nil {
			return err
		}
		ids, err := client.UploadFileChunks(ctx, id, chunks, nil)
		if err != nil {
			return err
		}
		v.mu.Lock()
		if entry, ok := v.idx.Entries[id]; ok {
			entry.CloudChunkIDs = ids
			entry.CloudStatus = vaultindex.SyncSynced
			entry.CloudSyncedAt = nowMs()
			v.idx.Entries[id] = entry
		}
		v.mu.Unlock()
		return nil
	}
	raw, err := v.records.ReadSealedEntry(id)
	if err != nil {
		return err
	}
	if _, err := client.UploadRecordEntry(ctx, id, raw, nil); err != nil {
		return err
	}
	v.mu.Lock()
	if entry, ok := v.idx.Entries[id]; ok {
		entry.CloudStatus = vaultindex.SyncSynced
		entry.CloudSyncedAt = nowMs()
		v.idx.Entries[id] = entry
	}
	v.mu.Unlock()
	return nil
}

// SyncStatus reports the sync-state sidecar without contacting the
// provider, for a quick "what would sync() do" display.
func (v *Vault) SyncStatus() (*cloudconfig.SyncState, error) {
	if _, _, err := v.beginOp("sync_status"); err != nil {
		return nil, err
	}
	return v.cloud.LoadSyncState()
}
