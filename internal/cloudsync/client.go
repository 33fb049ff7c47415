package cloudsync

import (
	"context"
	"fmt"

	"github.com/veilcask/veilcask/internal/bandwidth"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// Client drives chunk/index replication against a Provider. It never sees
// plaintext: callers pass already-sealed envelope bytes.
type Client struct {
	provider Provider
	mode     StorageMode
	folder   string // only meaningful when mode == ModePublic
	limiter  *bandwidth.Limiter
}

// NewClient binds a Client to a provider and storage mode.
func NewClient(p Provider, mode StorageMode, publicFolder string) *Client {
	return &Client{provider: p, mode: mode, folder: publicFolder}
}

// WithLimiter returns a copy of c throttling every upload and download it
// issues under l. A nil limiter (unset) leaves transfers unthrottled,
// matching bandwidth.Limiter's own nil-receiver behavior. Returns a new
// Client rather than mutating c in place so a Client already in flight on
// another goroutine (Vault.Sync copies v.syncClient under lock, then calls
// it unlocked) keeps the limiter it started with.
func (c *Client) WithLimiter(l *bandwidth.Limiter) *Client {
	cp := *c
	cp.limiter = l
	return &cp
}

func (c *Client) objectName(base string) string {
	if c.mode == ModePublic && c.folder != "" {
		return c.folder + "/" + base
	}
	return base
}

// UploadRecordEntry uploads a Password/Note entry's already-sealed envelope
// bytes, reusing an existing object by name if one is present (idempotent
// sync, §8.1 invariant 10).
func (c *Client) UploadRecordEntry(ctx context.Context, recordID string, envelopeText []byte, progress ProgressFunc) (objectID string, err error) {
	name := c.objectName(recordID + ".enc")
	if existing, found, ferr := c.provider.FindByName(ctx, name); ferr == nil && found {
		return existing, nil
	}
	if err := c.limiter.WaitN(ctx, len(envelopeText)); err != nil {
		return "", vaulterr.Wrap(vaulterr.ProviderError, err)
	}
	id, err := c.provider.UploadBytes(ctx, name, envelopeText, progress)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.ProviderError, err)
	}
	return id, nil
}

// UploadFileChunks uploads each of a File record's chunk blobs, returning
// their object ids in chunk order so the caller can populate the index
// entry's CloudChunkIDs. On any chunk's failure, already-uploaded chunks
// for this call are left in place (they are harmless, content-addressed by
// name, and will be found-by-name on retry).
func (c *Client) UploadFileChunks(ctx context.Context, recordID string, chunks [][]byte, progress ProgressFunc) ([]string, error) {
	ids := make([]string, len(chunks))
	var total, done int64
	for _, ch := range chunks {
		total += int64(len(ch))
	}
	for i, ch := range chunks {
		name := c.objectName(fmt.Sprintf("%s_%d.bin", recordID, i))
		if existing, found, ferr := c.provider.FindByName(ctx, name); ferr == nil && found {
			ids[i] = existing
			done += int64(len(ch))
			if progress != nil {
				progress(done, total)
			}
			continue
		}
		if err := c.limiter.WaitN(ctx, len(ch)); err != nil {
			return nil, vaulterr.Wrap(vaulterr.ProviderError, err)
		}
		id, err := c.provider.UploadBytes(ctx, name, ch, nil)
		if err != nil {
			return nil, vaulterr.Wrap(vaulterr.ProviderError, err)
		}
		ids[i] = id
		done += int64(len(ch))
		if progress != nil {
			progress(done, total)
		}
	}
	return ids, nil
}

// DownloadFileChunks downloads every chunk object id in order. The returned
// bytes are still sealed ciphertext; the caller decrypts them via
// recordstore after download.
func (c *Client) DownloadFileChunks(ctx context.Context, objectIDs []string, progress ProgressFunc) ([][]byte, error) {
	out := make([][]byte, len(objectIDs))
	var total, done int64
	for i, id := range objectIDs {
		// The provider can't report an object's size before fetching it, so
		// the wait can only be charged after the bytes are already in hand;
		// this still caps sustained throughput across chunks even though a
		// single chunk's download itself runs at line rate.
		data, err := c.provider.DownloadToBuffer(ctx, id)
		if err != nil {
			return nil, vaulterr.WithChunk(i, err)
		}
		if werr := c.limiter.WaitN(ctx, len(data)); werr != nil {
			return nil, vaulterr.WithChunk(i, werr)
		}
		out[i] = data
		done += int64(len(data))
		total = done // provider does not report a pre-known total per chunk
		if progress != nil {
			progress(done, total)
		}
	}
	return out, nil
}

// DeleteRecordObjects removes a record's entry object and/or chunk objects
// best-effort: a missing object is not an error (§6.4, §8.2 S5).
func (c *Client) DeleteRecordObjects(ctx context.Context, objectIDs []string) error {
	for _, id := range objectIDs {
		if id == "" {
			continue
		}
		if err := c.provider.Delete(ctx, id); err != nil {
			return vaulterr.Wrap(vaulterr.ProviderError, err)
		}
	}
	return nil
}

const indexBackupName = "vault_index_backup.enc"

// BackupIndex uploads the already-sealed index envelope text under a fixed
// name so a new device can restore from it (§4.8 index backup).
func (c *Client) BackupIndex(ctx context.Context, indexFileContents []byte) error {
	name := c.objectName(indexBackupName)
	if existing, found, _ := c.provider.FindByName(ctx, name); found {
		if err := c.provider.Delete(ctx, existing); err != nil {
			return vaulterr.Wrap(vaulterr.ProviderError, err)
		}
	}
	if err := c.limiter.WaitN(ctx, len(indexFileContents)); err != nil {
		return vaulterr.Wrap(vaulterr.ProviderError, err)
	}
	if _, err := c.provider.UploadBytes(ctx, name, indexFileContents, nil); err != nil {
		return vaulterr.Wrap(vaulterr.ProviderError, err)
	}
	return nil
}

// RestoreIndex downloads the backed-up index file contents, for the caller
// to decrypt locally with the user's passphrase.
func (c *Client) RestoreIndex(ctx context.Context) ([]byte, error) {
	name := c.objectName(indexBackupName)
	id, found, err := c.provider.FindByName(ctx, name)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ProviderError, err)
	}
	if !found {
		return nil, vaulterr.New(vaulterr.NotFound)
	}
	data, err := c.provider.DownloadToBuffer(ctx, id)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ProviderError, err)
	}
	if err := c.limiter.WaitN(ctx, len(data)); err != nil {
		return nil, vaulterr.Wrap(vaulterr.ProviderError, err)
	}
	return data, nil
}
