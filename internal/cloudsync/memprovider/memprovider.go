// Package memprovider is an in-memory implementation of
// cloudsync.Provider, used by tests and by the core's own test suite to
// exercise sync logic without a real cloud vendor. It is grounded on the
// teacher's own pattern of narrow interfaces over concrete backends
// (internal/config.Manager wraps disk I/O the same way this wraps a map).
package memprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/veilcask/veilcask/internal/cloudsync"
)

type object struct {
	name     string
	data     []byte
	modified int64
}

// Provider is a thread-safe in-memory object store.
type Provider struct {
	mu      sync.Mutex
	objects map[string]*object
	clock   int64
}

// New returns an empty Provider.
func New() *Provider {
	return &Provider{objects: map[string]*object{}}
}

func (p *Provider) tick() int64 {
	p.clock++
	return p.clock
}

func (p *Provider) UploadBytes(_ context.Context, name string, data []byte, progress cloudsync.ProgressFunc) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.New().String()
	cp := append([]byte(nil), data...)
	p.objects[id] = &object{name: name, data: cp, modified: p.tick()}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return id, nil
}

func (p *Provider) UploadStream(ctx context.Context, name string, r io.Reader, totalLen int64, progress cloudsync.ProgressFunc) (string, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return p.UploadBytes(ctx, name, buf, progress)
}

func (p *Provider) DownloadToBuffer(_ context.Context, objectID string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[objectID]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectID)
	}
	return append([]byte(nil), obj.data...), nil
}

func (p *Provider) DownloadToStream(ctx context.Context, objectID string, w io.Writer, progress cloudsync.ProgressFunc) error {
	data, err := p.DownloadToBuffer(ctx, objectID)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("copy to destination: %w", err)
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return nil
}

func (p *Provider) FindByName(_ context.Context, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, obj := range p.objects {
		if obj.name == name {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (p *Provider) List(_ context.Context, namePrefix string) ([]cloudsync.ObjectInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []cloudsync.ObjectInfo
	for id, obj := range p.objects {
		if namePrefix == "" || len(obj.name) >= len(namePrefix) && obj.name[:len(namePrefix)] == namePrefix {
			out = append(out, cloudsync.ObjectInfo{ID: id, Name: obj.name, Size: int64(len(obj.data)), ModifiedAt: obj.modified})
		}
	}
	return out, nil
}

func (p *Provider) Delete(_ context.Context, objectID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, objectID) // deleting an absent id is a no-op, matching NotFound-as-success on destruct paths
	return nil
}

func (p *Provider) Quota(_ context.Context) (cloudsync.Quota, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var used int64
	for _, obj := range p.objects {
		used += int64(len(obj.data))
	}
	return cloudsync.Quota{UsedBytes: used, TotalBytes: 0}, false, nil
}

var _ cloudsync.Provider = (*Provider)(nil)
