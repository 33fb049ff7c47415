// Package vaulterr defines the vault's error taxonomy: a small set of
// named failure kinds that every layer of the core maps to, so callers can
// branch on errors.Is / errors.As instead of string matching.
package vaulterr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure a caller may need to branch on.
type Kind string

const (
	Locked              Kind = "locked"
	WrongPassphrase     Kind = "wrong_passphrase"
	Needs2FA            Kind = "needs_2fa"
	Invalid2FA          Kind = "invalid_2fa"
	NotFound            Kind = "not_found"
	IdCollision         Kind = "id_collision"
	AeadOpenFailed      Kind = "aead_open_failed"
	ChunkCorrupt        Kind = "chunk_corrupt"
	IoError             Kind = "io_error"
	ProviderError       Kind = "provider_error"
	ConflictUnresolved  Kind = "conflict_unresolved"
	WeakPassphrase      Kind = "weak_passphrase"
	AlreadyExists       Kind = "already_exists"
	ReauthRequired      Kind = "reauth_required"
	DuressForbidden     Kind = "duress_forbidden"
)

// ProviderSubkind further classifies a ProviderError.
type ProviderSubkind string

const (
	ProviderNetwork     ProviderSubkind = "network"
	ProviderAuthExpired ProviderSubkind = "auth_expired"
	ProviderQuota       ProviderSubkind = "quota"
	ProviderRateLimited ProviderSubkind = "rate_limited"
)

// Error is the concrete error type returned by the vault core. It carries a
// Kind for branching, an optional wrapped cause, and structured fields for
// the kinds that need them (ChunkCorrupt's index, ProviderError's subkind).
type Error struct {
	Kind            Kind
	Cause           error
	TargetID        string
	ChunkIndex      int
	ProviderSubkind ProviderSubkind
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	switch e.Kind {
	case ChunkCorrupt:
		msg = fmt.Sprintf("%s(%d)", msg, e.ChunkIndex)
	case ProviderError:
		if e.ProviderSubkind != "" {
			msg = fmt.Sprintf("%s(%s)", msg, e.ProviderSubkind)
		}
	}
	if e.TargetID != "" {
		msg = fmt.Sprintf("%s: id=%s", msg, e.TargetID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, vaulterr.New(kind)) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a bare Error of the given kind, suitable as an errors.Is target
// or as a sentinel-style return value.
func New(kind Kind) *Error { return &Error{Kind: kind} }

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error) *Error { return &Error{Kind: kind, Cause: cause} }

// WithID attaches a target record id to a copy of e.
func (e *Error) WithID(id string) *Error {
	c := *e
	c.TargetID = id
	return &c
}

// WithChunk builds a ChunkCorrupt error for the given index, wrapping cause.
func WithChunk(index int, cause error) *Error {
	return &Error{Kind: ChunkCorrupt, ChunkIndex: index, Cause: cause}
}

// WithProvider builds a ProviderError of the given subkind, wrapping cause.
func WithProvider(subkind ProviderSubkind, cause error) *Error {
	return &Error{Kind: ProviderError, ProviderSubkind: subkind, Cause: cause}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether a ProviderError's subkind should be retried
// locally with backoff per §7's policy.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != ProviderError {
		return false
	}
	switch e.ProviderSubkind {
	case ProviderNetwork, ProviderRateLimited:
		return true
	default:
		return false
	}
}
