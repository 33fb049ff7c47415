// Package vault implements the vault orchestrator (C11): the single
// composition root that wires the key manager, index store, record store,
// duress subsystem, second factor, audit log, and cloud sync client
// together behind the operation surface the CLI calls. No other package
// calls more than one of these subsystems directly; vault.Vault is where
// their interaction happens.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilcask/veilcask/internal/audit"
	"github.com/veilcask/veilcask/internal/cloudconfig"
	"github.com/veilcask/veilcask/internal/cloudsync"
	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/duress"
	"github.com/veilcask/veilcask/internal/keymgr"
	"github.com/veilcask/veilcask/internal/passphrase"
	"github.com/veilcask/veilcask/internal/recordstore"
	"github.com/veilcask/veilcask/internal/totp"
	"github.com/veilcask/veilcask/internal/vaultindex"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// Vault composes every subsystem behind the vault's operation surface.
// A single Vault is bound to one vault root directory for its lifetime.
type Vault struct {
	root string

	keys    *keymgr.Manager
	index   *vaultindex.Store
	records *recordstore.Store
	audit   *audit.Log
	cloud   *cloudconfig.Manager

	mu            sync.Mutex
	idx           *vaultindex.Index // decrypted, cached while unsealed
	salt          []byte
	hdr           vaultindex.Header
	generation    uint64
	syncClient    *cloudsync.Client          // nil until configured
	duressScratch map[string]*recordstore.Record // in-memory-only records added during a duress session; never touches disk

	idleTimeout time.Duration
	idleTimer   *time.Timer
	onAutoLock  func()
}

// Open binds a Vault to an existing vault root without unlocking it.
func Open(root string) *Vault {
	return &Vault{
		root:    root,
		keys:    keymgr.New(),
		index:   vaultindex.NewStore(root),
		records: recordstore.NewStore(root),
		audit:   audit.NewLog(root),
		cloud:   cloudconfig.NewManager(root),
	}
}

// Init creates a new vault at root: directory layout, a fresh empty index
// sealed under a freshly derived key, and the initial audit entry. Fails if
// an index already exists (callers should use PrepareVaultPath first to
// give a clearer pre-flight error).
func Init(root, pass string) (*Vault, error) {
	if err := validatePassphraseStrength(pass); err != nil {
		return nil, err
	}
	v := Open(root)
	if v.index.Exists() {
		return nil, vaulterr.New(vaulterr.AlreadyExists).WithID(root)
	}

	for _, dir := range []string{root, filepath.Join(root, constants.EntriesDirName), filepath.Join(root, constants.FilesDirName)} {
		if err := os.MkdirAll(dir, constants.SecureDirPerms); err != nil {
			return nil, fmt.Errorf("create vault directory %s: %w", dir, err)
		}
	}

	salt, err := cryptoprim.NewSalt()
	if err != nil {
		return nil, err
	}
	params := cryptoprim.DefaultKDFParams(salt)
	kek, err := cryptoprim.DeriveKEK(pass, params)
	if err != nil {
		return nil, err
	}
	subkeys, err := deriveSubkeys(kek)
	if err != nil {
		cryptoprim.Zero(kek)
		return nil, err
	}
	verifier, err := cryptoprim.Verifier(kek)
	if err != nil {
		cryptoprim.Zero(kek)
		subkeys.zeroForCaller()
		return nil, err
	}

	idx := vaultindex.New()
	idx.KeyHash = vaultindex.EncodeKeyHash(verifier)
	idx.Metadata.Created = nowMs()
	hdr := vaultindex.HeaderFromParams(params)
	hdr.KeyHash = idx.KeyHash

	if err := v.index.Save(idx, salt, hdr, subkeys.Index); err != nil {
		cryptoprim.Zero(kek)
		subkeys.zeroForCaller()
		return nil, err
	}

	v.keys.Unseal(kek, subkeys.toKeymgr(), false)
	v.mu.Lock()
	v.idx = idx
	v.salt = salt
	v.hdr = hdr
	v.generation = v.keys.Generation()
	v.mu.Unlock()

	if err := v.appendAudit(audit.VaultCreated, "", ""); err != nil {
		return v, err
	}
	return v, nil
}

// subkeySet is a local convenience wrapper so Init/Unlock can derive once
// and hand ownership to keymgr.Subkeys without repeating five calls.
type subkeySet struct {
	Index, Entry, Metadata, Audit, Duress []byte
}

func deriveSubkeys(kek []byte) (*subkeySet, error) {
	var s subkeySet
	var err error
	if s.Index, err = cryptoprim.DeriveSubkey(kek, cryptoprim.LabelIndex); err != nil {
		return nil, err
	}
	if s.Entry, err = cryptoprim.DeriveSubkey(kek, cryptoprim.LabelEntry); err != nil {
		return nil, err
	}
	if s.Metadata, err = cryptoprim.DeriveSubkey(kek, cryptoprim.LabelMetadata); err != nil {
		return nil, err
	}
	if s.Audit, err = cryptoprim.DeriveSubkey(kek, cryptoprim.LabelAudit); err != nil {
		return nil, err
	}
	if s.Duress, err = cryptoprim.DeriveSubkey(kek, cryptoprim.LabelDuress); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *subkeySet) toKeymgr() *keymgr.Subkeys {
	return &keymgr.Subkeys{Index: s.Index, Entry: s.Entry, Metadata: s.Metadata, Audit: s.Audit, Duress: s.Duress}
}

func (s *subkeySet) zeroForCaller() {
	cryptoprim.Zero(s.Index)
	cryptoprim.Zero(s.Entry)
	cryptoprim.Zero(s.Metadata)
	cryptoprim.Zero(s.Audit)
	cryptoprim.Zero(s.Duress)
}

// Unlock verifies passphrase against the real and duress verifiers and, on
// success, decrypts the index and transitions the key manager to Unsealed.
// If the vault has 2FA configured, totpCode must be supplied (a TOTP code
// or an unused backup code); callers check Needs2FA first via RequiresTwo
// factor before prompting.
func (v *Vault) Unlock(passphrase string, totpCode string) error {
	salt, hdr, err := v.index.ReadHeader()
	if err != nil {
		return fmt.Errorf("read vault header: %w", err)
	}
	params := vaultindex.ParamsFromHeader(hdr, salt)

	kek, err := cryptoprim.DeriveKEK(passphrase, params)
	if err != nil {
		return err
	}
	verifier, err := cryptoprim.Verifier(kek)
	if err != nil {
		cryptoprim.Zero(kek)
		return err
	}

	subkeys, err := deriveSubkeys(kek)
	if err != nil {
		cryptoprim.Zero(kek)
		return err
	}

	// The verifiers live in the plaintext header precisely so this decision
	// can be made before any index key is derived or ciphertext touched
	// (§4.5): a real-passphrase match decrypts the real index; a
	// duress-passphrase match never attempts to, since the index was never
	// encrypted under a duress-derived key in the first place.
	realMatch := cryptoprim.ConstantTimeEqual(vaultindex.DecodeKeyHash(hdr.KeyHash), verifier)
	duressMatch := !realMatch && duress.Verify(hdr.DuressVerifier, verifier)
	if !realMatch && !duressMatch {
		cryptoprim.Zero(kek)
		subkeys.zeroForCaller()
		// A failed attempt cannot be appended to the encrypted audit log: that
		// requires the audit subkey, which is only reachable with the correct
		// passphrase. Record it in the unauthenticated plaintext counter
		// instead (§4.7 design note).
		_ = v.recordFailedAttempt()
		return vaulterr.New(vaulterr.WrongPassphrase)
	}

	var idx *vaultindex.Index
	if realMatch {
		var loadErr error
		idx, loadErr = v.index.Load(subkeys.Index)
		if loadErr != nil {
			cryptoprim.Zero(kek)
			subkeys.zeroForCaller()
			return vaulterr.Wrap(vaulterr.AeadOpenFailed, loadErr)
		}
		if idx.Vault2FA != nil && idx.Vault2FA.Enabled {
			ok, terr := v.verifyTwoFactor(idx, totpCode)
			if terr != nil || !ok {
				cryptoprim.Zero(kek)
				subkeys.zeroForCaller()
				return vaulterr.New(vaulterr.Invalid2FA)
			}
		}
	} else {
		idx = decoyIndex(hdr.DuressDecoys)
	}

	v.keys.Unseal(kek, subkeys.toKeymgr(), duressMatch)
	v.mu.Lock()
	v.idx = idx
	v.salt = salt
	v.hdr = hdr
	v.generation = v.keys.Generation()
	if duressMatch {
		v.duressScratch = map[string]*recordstore.Record{}
	}
	v.mu.Unlock()

	if realMatch {
		_ = v.ResetFailedAttempts()
		return v.appendAudit(audit.VaultUnlocked, "", "")
	}
	return nil
}

// decoyIndex builds a synthetic Index from the header's pre-baked decoy
// list, shown only during a duress session (§4.5). Decoy record content
// itself lives as ordinary recordstore entries, sealed at configure-duress
// time under the duress-derived entry key, so Get() works transparently
// once the session is unsealed with that same key.
func decoyIndex(decoys []vaultindex.DecoyRecord) *vaultindex.Index {
	idx := vaultindex.New()
	for _, d := range decoys {
		idx.Entries[d.ID] = vaultindex.Entry{TitleEncrypted: d.TitleEncrypted, EntryType: vaultindex.EntryPassword}
	}
	return idx
}

func (v *Vault) verifyTwoFactor(idx *vaultindex.Index, code string) (bool, error) {
	cfg := totp.Config{
		Secret:    idx.Vault2FA.Secret,
		Algorithm: totp.Algorithm(idx.Vault2FA.Algorithm),
		Digits:    idx.Vault2FA.Digits,
		Period:    idx.Vault2FA.PeriodSecs,
	}
	ok, err := totp.Validate(cfg, code, time.Now().Unix(), constants.DefaultTOTPWindow)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	remaining, used := totp.ConsumeBackupCode(idx.Vault2FA.BackupCodes, code)
	if used {
		idx.Vault2FA.BackupCodes = remaining
		return true, nil
	}
	return false, nil
}

// RequiresTwoFactor reports whether unlock will need a TOTP/backup code,
// based on the header alone (before the index can be decrypted). The
// vault's 2FA flag lives inside the encrypted index, so the CLI always
// prompts for a code speculatively when it cannot know in advance; this
// helper exists for callers (e.g. the CLI) that unlock once already and
// want to know for subsequent prompts.
func (v *Vault) RequiresTwoFactor() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.idx != nil && v.idx.Vault2FA != nil && v.idx.Vault2FA.Enabled
}

// Lock zeroizes all key material and drops the cached index.
func (v *Vault) Lock() error {
	wasDuress := v.keys.IsDuress()
	v.keys.Seal()
	v.mu.Lock()
	v.idx = nil
	v.duressScratch = nil
	if v.idleTimer != nil {
		v.idleTimer.Stop()
	}
	v.mu.Unlock()
	if !wasDuress {
		return v.appendAudit(audit.VaultLocked, "", "")
	}
	return nil
}

// IsSealed reports whether the vault is currently locked.
func (v *Vault) IsSealed() bool { return v.keys.IsSealed() }

// IsDuress reports whether the current session is a duress session.
func (v *Vault) IsDuress() bool { return v.keys.IsDuress() }

// SetIdleTimeout arms (or disarms, with 0) an inactivity auto-lock timer.
// touch() resets it on every operation; onLock is invoked after the vault
// locks itself.
func (v *Vault) SetIdleTimeout(d time.Duration, onLock func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.idleTimeout = d
	v.onAutoLock = onLock
	if v.idleTimer != nil {
		v.idleTimer.Stop()
		v.idleTimer = nil
	}
	if d > 0 && !v.keys.IsSealed() {
		v.idleTimer = time.AfterFunc(d, v.autoLock)
	}
}

func (v *Vault) autoLock() {
	_ = v.Lock()
	v.mu.Lock()
	cb := v.onAutoLock
	v.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (v *Vault) touch() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.idleTimeout > 0 && v.idleTimer != nil {
		v.idleTimer.Reset(v.idleTimeout)
	}
}

// appendAudit seals and appends one audit event using the current
// session's audit subkey. Suppressed entirely during a duress session
// (§4.5 point 3): callers that need audit regardless of mode should not go
// through this helper.
func (v *Vault) appendAudit(kind audit.Kind, targetID, title string) error {
	if v.keys.IsDuress() {
		return nil
	}
	sk, err := v.keys.Subkeys()
	if err != nil {
		return err
	}
	seq, err := v.audit.NextSequence()
	if err != nil {
		return err
	}
	return v.audit.Append(audit.Event{Kind: kind, TimestampMs: nowMs(), TargetID: targetID, TitleSnapshot: title}, seq, sk.Audit)
}

func (v *Vault) newRecordID() string { return uuid.New().String() }

func nowMs() int64 { return time.Now().UnixMilli() }

// validatePassphraseStrength enforces the core's weak-passphrase policy
// (§7 WeakPassphrase) on a candidate real or duress passphrase: minimum
// length plus character-class diversity, escalated with a common-password
// check once those basics pass.
func validatePassphraseStrength(pass string) error {
	result := passphrase.ValidateHybrid(pass)
	if !result.Valid {
		return vaulterr.Wrap(vaulterr.WeakPassphrase, fmt.Errorf("%s", passphrase.GetHybridErrorMessage(result)))
	}
	return nil
}
