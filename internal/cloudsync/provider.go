// Package cloudsync implements the vault's cloud replication path (C9): a
// narrow abstract object-store provider contract, chunked upload/download
// with progress callbacks, an OAuth PKCE loopback flow for token
// acquisition, encrypted token-at-rest, and index backup/restore. The core
// never depends on a specific cloud vendor; only an adapter implementing
// Provider does.
package cloudsync

import (
	"context"
	"io"
)

// ProgressFunc reports bytes transferred so far out of total (0 if the
// provider cannot report a total, e.g. a chunked upload of unknown length).
type ProgressFunc func(transferred, total int64)

// ObjectInfo describes one object as listed by a provider.
type ObjectInfo struct {
	ID         string
	Name       string
	Size       int64
	ModifiedAt int64
}

// Quota reports a provider's storage usage, when it can report one.
type Quota struct {
	UsedBytes  int64
	TotalBytes int64
}

// Provider is the narrow interface the vault core requires from a cloud
// object store (§6.4). Every vendor-specific detail (folder semantics,
// app-private areas, REST endpoints) lives behind an implementation of
// this interface; the core only ever calls these nine methods.
type Provider interface {
	UploadBytes(ctx context.Context, name string, data []byte, progress ProgressFunc) (objectID string, err error)
	UploadStream(ctx context.Context, name string, r io.Reader, totalLen int64, progress ProgressFunc) (objectID string, err error)
	DownloadToBuffer(ctx context.Context, objectID string) ([]byte, error)
	DownloadToStream(ctx context.Context, objectID string, w io.Writer, progress ProgressFunc) error
	FindByName(ctx context.Context, name string) (objectID string, found bool, err error)
	List(ctx context.Context, namePrefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, objectID string) error
	Quota(ctx context.Context) (Quota, bool, error) // ok=false if the provider cannot report quota
}

// StorageMode selects where a provider keeps vault objects (§4.8).
type StorageMode string

const (
	ModeHidden StorageMode = "hidden" // provider-specific app-private area
	ModePublic StorageMode = "public" // a named folder in the user's namespace
)
