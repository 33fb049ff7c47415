// Package keymgr implements the vault's key-manager state machine (C3): it
// holds subkeys in memory only while the vault is unlocked, tracks a
// generation counter so operations begun before a lock fail fast afterward,
// and zeroizes every key buffer on lock.
package keymgr

import (
	"sync"

	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// Subkeys holds the five purpose-bound keys derived from the KEK on unlock.
type Subkeys struct {
	Index    []byte
	Entry    []byte
	Metadata []byte
	Audit    []byte
	Duress   []byte
}

func (s *Subkeys) zero() {
	if s == nil {
		return
	}
	cryptoprim.Zero(s.Index)
	cryptoprim.Zero(s.Entry)
	cryptoprim.Zero(s.Metadata)
	cryptoprim.Zero(s.Audit)
	cryptoprim.Zero(s.Duress)
}

// Manager is the process's single key-manager instance, held by the vault
// orchestrator. It is safe for concurrent use; all access to key state goes
// through the mutex.
type Manager struct {
	mu         sync.RWMutex
	sealed     bool
	kek        []byte
	subkeys    *Subkeys
	generation uint64
	duress     bool // true if the session was unlocked via the duress passphrase
}

// New returns a Manager in the Sealed state.
func New() *Manager {
	return &Manager{sealed: true}
}

// Seal zeroizes all key material and transitions to Sealed, bumping the
// generation so any operation holding a stale snapshot observes Locked on
// its next key access.
func (m *Manager) Seal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cryptoprim.Zero(m.kek)
	m.subkeys.zero()
	m.kek = nil
	m.subkeys = nil
	m.sealed = true
	m.duress = false
	m.generation++
}

// Unseal transitions to Unsealed with the given KEK and derived subkeys,
// replacing any prior key material. Callers derive kek/subkeys themselves
// (via cryptoprim) after verifying the passphrase; Unseal only takes
// ownership of the buffers.
func (m *Manager) Unseal(kek []byte, subkeys *Subkeys, duress bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cryptoprim.Zero(m.kek)
	m.subkeys.zero()
	m.kek = kek
	m.subkeys = subkeys
	m.sealed = false
	m.duress = duress
	m.generation++
}

// IsSealed reports whether the manager currently holds no key material.
func (m *Manager) IsSealed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sealed
}

// IsDuress reports whether the current unsealed session was produced by the
// duress passphrase.
func (m *Manager) IsDuress() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.sealed && m.duress
}

// Generation returns the current generation counter, which increments on
// every Seal/Unseal transition.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Subkeys returns the current subkey set, or Locked if sealed. The returned
// pointer must not be retained past the call that produced it: a concurrent
// Seal zeroizes the underlying buffers in place.
func (m *Manager) Subkeys() (*Subkeys, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sealed {
		return nil, vaulterr.New(vaulterr.Locked)
	}
	return m.subkeys, nil
}

// KEK returns the current master key, or Locked if sealed. Exists for the
// rare operations that need to re-derive a subkey with a label not among
// the standard five (none currently do; kept narrow on purpose).
func (m *Manager) KEK() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sealed {
		return nil, vaulterr.New(vaulterr.Locked)
	}
	return m.kek, nil
}

// CheckGeneration returns Locked if the manager has sealed or re-unsealed
// since snapshot was observed, so a long-running operation (e.g. streaming
// a large file) can detect a lock that happened mid-flight.
func (m *Manager) CheckGeneration(snapshot uint64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sealed || m.generation != snapshot {
		return vaulterr.New(vaulterr.Locked)
	}
	return nil
}
