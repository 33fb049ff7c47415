package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/veilcask/veilcask/internal/audit"
	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/duress"
	"github.com/veilcask/veilcask/internal/envelope"
	"github.com/veilcask/veilcask/internal/recordstore"
	"github.com/veilcask/veilcask/internal/totp"
	"github.com/veilcask/veilcask/internal/vaultindex"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// TwoFactorSetup is returned once, at configuration time, so the caller can
// show the QR/provisioning URI and the plaintext backup codes. Neither value
// is ever persisted; the index keeps only the seed and the codes' hashes.
type TwoFactorSetup struct {
	ProvisioningURI string
	BackupCodes     []string
}

// ConfigureVault2FA generates a fresh TOTP seed and backup codes, enables
// 2FA on the index, and returns the one-time setup material for display.
func (v *Vault) ConfigureVault2FA(accountName string) (*TwoFactorSetup, error) {
	s, idx, err := v.beginOp("configure_vault_2fa")
	if err != nil {
		return nil, err
	}
	secret, err := totp.GenerateSecret(20)
	if err != nil {
		return nil, err
	}
	codes, err := totp.GenerateBackupCodes(constants.DefaultBackupCodeCount)
	if err != nil {
		return nil, err
	}
	hashed := make([]string, len(codes))
	for i, c := range codes {
		hashed[i] = totp.HashBackupCode(c)
	}

	cfg := vaultindex.TwoFactorConfig{
		Enabled:     true,
		Secret:      secret,
		Algorithm:   string(totp.SHA1),
		Digits:      constants.DefaultTOTPDigits,
		PeriodSecs:  constants.DefaultTOTPPeriodSeconds,
		BackupCodes: hashed,
	}
	idx.Vault2FA = &cfg
	if err := v.persistIndex(idx, s.sk); err != nil {
		return nil, err
	}
	_ = v.appendAudit(audit.TwoFactorConfigured, "", "")

	uri := totp.ProvisioningURI(totp.Config{Secret: secret, Algorithm: totp.SHA1, Digits: cfg.Digits, Period: cfg.PeriodSecs}, constants.TOTPIssuer, accountName)
	return &TwoFactorSetup{ProvisioningURI: uri, BackupCodes: codes}, nil
}

// DisableVault2FA turns off the second factor entirely.
func (v *Vault) DisableVault2FA() error {
	s, idx, err := v.beginOp("disable_vault_2fa")
	if err != nil {
		return err
	}
	idx.Vault2FA = nil
	if err := v.persistIndex(idx, s.sk); err != nil {
		return err
	}
	return v.appendAudit(audit.TwoFactorDisabled, "", "")
}

// DecoyInput describes one plausible decoy entry to seed the duress index
// with, supplied by the caller configuring duress mode.
type DecoyInput struct {
	Title    string
	Username string
	Password string
	URL      string
}

// ConfigureDuress derives a fully independent key hierarchy from
// duressPassphrase (same salt and KDF parameters as the real vault, so a
// duress unlock costs identical KDF work, §9), seals the given decoy records
// under that hierarchy's entry key, and records the duress verifier and
// decoy list in the plaintext header so Unlock can recognize the duress
// passphrase before any real ciphertext is touched.
func (v *Vault) ConfigureDuress(duressPassphrase string, decoys []DecoyInput) error {
	s, _, err := v.beginOp("configure_duress")
	if err != nil {
		return err
	}
	if err := validatePassphraseStrength(duressPassphrase); err != nil {
		return err
	}

	v.mu.Lock()
	salt, hdr := v.salt, v.hdr
	v.mu.Unlock()
	params := vaultindex.ParamsFromHeader(hdr, salt)

	duressKEK, verifier, err := duress.DeriveVerifier(duressPassphrase, params)
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(duressKEK)

	duressSubkeys, err := deriveSubkeys(duressKEK)
	if err != nil {
		return err
	}
	defer duressSubkeys.zeroForCaller()

	decoyRecords := make([]vaultindex.DecoyRecord, 0, len(decoys))
	for _, d := range decoys {
		id := v.newRecordID()
		rid := uuid.MustParse(id)
		now := nowUnixMs()
		rec := &recordstore.Record{
			ID: id, Type: recordstore.TypePassword, Title: d.Title, Created: now, Modified: now,
			Username: d.Username, Password: d.Password, URL: d.URL,
		}
		if err := v.records.SaveEntry(rec, duressSubkeys.Entry); err != nil {
			return fmt.Errorf("seal decoy %q: %w", d.Title, err)
		}
		titleEnc, err := sealTitle(envelope.PurposeMetadata, duressSubkeys.Metadata, rid, d.Title)
		if err != nil {
			return fmt.Errorf("seal decoy title %q: %w", d.Title, err)
		}
		decoyRecords = append(decoyRecords, vaultindex.DecoyRecord{ID: id, TitleEncrypted: titleEnc})
	}

	hdr.DuressVerifier = duress.EncodeVerifier(verifier)
	hdr.DuressDecoys = decoyRecords

	v.mu.Lock()
	v.hdr = hdr
	idx := v.idx
	v.mu.Unlock()
	if err := v.index.Save(idx, salt, hdr, s.sk.Index); err != nil {
		return err
	}
	return v.appendAudit(audit.DuressConfigured, "", "")
}

// ChangePassphrase rotates the vault's real passphrase: a fresh salt and
// KDF parameters, a fresh key hierarchy, and every existing record (entry
// metadata, file chunks, index titles) and the audit log resealed under
// the new keys. Forbidden during a duress session (`duress.Forbidden`),
// since there is no real key material to rotate in one.
func (v *Vault) ChangePassphrase(oldPassphrase, newPassphrase string) error {
	s, idx, err := v.beginOp("change_passphrase")
	if err != nil {
		return err
	}
	if err := validatePassphraseStrength(newPassphrase); err != nil {
		return err
	}

	v.mu.Lock()
	salt, hdr := v.salt, v.hdr
	v.mu.Unlock()
	oldParams := vaultindex.ParamsFromHeader(hdr, salt)
	oldKEK, err := cryptoprim.DeriveKEK(oldPassphrase, oldParams)
	if err != nil {
		return err
	}
	oldVerifier, err := cryptoprim.Verifier(oldKEK)
	cryptoprim.Zero(oldKEK)
	if err != nil {
		return err
	}
	if !cryptoprim.ConstantTimeEqual(vaultindex.DecodeKeyHash(hdr.KeyHash), oldVerifier) {
		return vaulterr.New(vaulterr.WrongPassphrase)
	}

	newSalt, err := cryptoprim.NewSalt()
	if err != nil {
		return err
	}
	newParams := cryptoprim.DefaultKDFParams(newSalt)
	newKEK, err := cryptoprim.DeriveKEK(newPassphrase, newParams)
	if err != nil {
		return err
	}
	newSubkeys, err := deriveSubkeys(newKEK)
	if err != nil {
		cryptoprim.Zero(newKEK)
		return err
	}
	newVerifier, err := cryptoprim.Verifier(newKEK)
	if err != nil {
		cryptoprim.Zero(newKEK)
		newSubkeys.zeroForCaller()
		return err
	}

	// newKEK/newSubkeys are handed to keymgr.Unseal below on success; they
	// must not be zeroized on that path, only on an error return before it.
	for id, entry := range idx.Entries {
		rec, lerr := v.records.LoadEntry(id, s.sk.Entry)
		if lerr != nil {
			cryptoprim.Zero(newKEK)
			newSubkeys.zeroForCaller()
			return fmt.Errorf("load entry %s for rotation: %w", id, lerr)
		}
		if entry.EntryType == vaultindex.EntryFile {
			if rerr := v.records.RekeyChunks(id, entry.ChunkCount, s.sk.Entry, newSubkeys.Entry); rerr != nil {
				cryptoprim.Zero(newKEK)
				newSubkeys.zeroForCaller()
				return fmt.Errorf("rekey chunks for %s: %w", id, rerr)
			}
		}
		if serr := v.records.SaveEntry(rec, newSubkeys.Entry); serr != nil {
			cryptoprim.Zero(newKEK)
			newSubkeys.zeroForCaller()
			return fmt.Errorf("reseal entry %s: %w", id, serr)
		}
		rid := uuid.MustParse(id)
		title, terr := openTitle(envelope.PurposeMetadata, s.sk.Metadata, rid, entry.TitleEncrypted)
		if terr != nil {
			cryptoprim.Zero(newKEK)
			newSubkeys.zeroForCaller()
			return fmt.Errorf("open title %s for rotation: %w", id, terr)
		}
		titleEnc, serr := sealTitle(envelope.PurposeMetadata, newSubkeys.Metadata, rid, title)
		if serr != nil {
			cryptoprim.Zero(newKEK)
			newSubkeys.zeroForCaller()
			return fmt.Errorf("reseal title %s: %w", id, serr)
		}
		entry.TitleEncrypted = titleEnc
		idx.Entries[id] = entry
	}

	if rerr := v.audit.Rekey(s.sk.Audit, newSubkeys.Audit); rerr != nil {
		cryptoprim.Zero(newKEK)
		newSubkeys.zeroForCaller()
		return fmt.Errorf("rekey audit log: %w", rerr)
	}

	idx.KeyHash = vaultindex.EncodeKeyHash(newVerifier)
	newHdr := vaultindex.HeaderFromParams(newParams)
	newHdr.KeyHash = idx.KeyHash
	newHdr.DuressVerifier = hdr.DuressVerifier
	newHdr.DuressDecoys = hdr.DuressDecoys

	if err := v.index.Save(idx, newSalt, newHdr, newSubkeys.Index); err != nil {
		// Entries, chunks, and the audit log are already resealed under
		// newSubkeys at this point; a failure here leaves the vault in a
		// state only a retry of ChangePassphrase with the same newPassphrase
		// can repair, since the old subkeys no longer open the rewritten
		// entry/chunk/audit files. This pass does not stage the rotation as
		// one fsatomic transaction across every file it touches.
		cryptoprim.Zero(newKEK)
		newSubkeys.zeroForCaller()
		return fmt.Errorf("save rotated index: %w", err)
	}

	v.keys.Unseal(newKEK, newSubkeys.toKeymgr(), false)
	v.mu.Lock()
	v.salt = newSalt
	v.hdr = newHdr
	v.generation = v.keys.Generation()
	v.mu.Unlock()

	return v.appendAudit(audit.EntryUpdated, "", "passphrase_changed")
}

// DisableDuress clears the duress verifier and decoy list; decoy record
// ciphertext is left on disk (it is inert without the duress key) rather
// than hunted down and removed, matching how an ordinary delete leaves no
// trace search behind either.
func (v *Vault) DisableDuress() error {
	s, idx, err := v.beginOp("disable_duress")
	if err != nil {
		return err
	}
	v.mu.Lock()
	salt, hdr := v.salt, v.hdr
	hdr.DuressVerifier = ""
	hdr.DuressDecoys = nil
	v.hdr = hdr
	v.mu.Unlock()
	if err := v.index.Save(idx, salt, hdr, s.sk.Index); err != nil {
		return err
	}
	return v.appendAudit(audit.DuressDisabled, "", "")
}

// Destruct wipes every file this vault root owns: entries, file chunks, the
// audit log, the failed-attempt counter, and the index itself. It never
// fails on a missing file (§6, destruct tolerates partial prior cleanup) and
// always zeroizes in-memory key material first regardless of how far the
// filesystem cleanup gets.
func (v *Vault) Destruct() error {
	v.keys.Seal()
	v.mu.Lock()
	v.idx = nil
	v.mu.Unlock()
	return destructDir(v.root)
}

// destructDir removes every file a vault root owns, tolerating any of them
// already being gone.
func destructDir(root string) error {
	paths := []string{
		filepath.Join(root, constants.IndexFileName),
		filepath.Join(root, constants.AuditLogFileName),
		filepath.Join(root, constants.DriveTokenFileName),
		filepath.Join(root, constants.DriveConfigName),
		filepath.Join(root, constants.SyncStateName),
		filepath.Join(root, ".failed_attempts"),
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("destruct %s: %w", p, err)
		}
	}
	dirs := []string{
		filepath.Join(root, constants.EntriesDirName),
		filepath.Join(root, constants.FilesDirName),
		filepath.Join(root, constants.TxnDirName),
	}
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			return fmt.Errorf("destruct %s: %w", d, err)
		}
	}
	return nil
}
