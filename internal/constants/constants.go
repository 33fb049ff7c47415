// Package constants holds shared on-disk permission bits, file names, and
// tunable defaults used across the vault core.
package constants

// File permissions.
const (
	SecureDirPerms    = 0o700 // Owner read/write/execute only; holds key material.
	SecureFilePerms   = 0o600 // Owner read/write only; holds ciphertext.
	StandardDirPerms  = 0o755
	StandardFilePerms = 0o644
)

// On-disk file and directory names, relative to the vault root.
const (
	IndexFileName      = "vault.enc"
	EntriesDirName     = "entries"
	FilesDirName       = "files"
	AuditLogFileName   = "audit.log"
	DriveTokenFileName = "drive_token.enc"
	DriveConfigName    = "drive_config.yaml"
	SyncStateName      = "sync_state.json"
	TxnDirName         = ".txn"
)

// KDF algorithm identifiers persisted in the index header.
const (
	KDFArgon2id = "argon2id"
	KDFScrypt   = "scrypt"
	KDFPBKDF2   = "pbkdf2"
)

// Argon2id defaults, matching the vault's passphrase-KDF policy.
const (
	Argon2Time      = 3
	Argon2MemoryKiB = 64 * 1024
	Argon2Threads   = 1
	Argon2KeyLen    = 32
	SaltLen         = 16
)

// Chunking defaults.
const (
	DefaultChunkSize = 20 * 1024 * 1024 // 20 MiB
)

// Second-factor defaults.
const (
	DefaultTOTPPeriodSeconds = 30
	DefaultTOTPDigits        = 6
	DefaultTOTPWindow        = 1
	MaxTOTPAttempts          = 3
	DefaultBackupCodeCount   = 10
	TOTPIssuer               = "VeilCask"
)

// OAuth loopback defaults.
const (
	OAuthLoopbackTimeoutSeconds = 300
)

// MinPassphraseLen enforces the core's weak-passphrase policy (§7 WeakPassphrase).
const MinPassphraseLen = 8
