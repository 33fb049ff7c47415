// Package envelope implements the self-describing ciphertext container used
// for every at-rest artifact: the index, per-record entry files, file
// chunks, and audit events. Every envelope binds a structured Associated
// Data context so ciphertext from one purpose, record, or chunk can never be
// substituted for another.
package envelope

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/veilcask/veilcask/internal/cryptoprim"
)

// magic identifies this container format at the start of every buffer
// envelope.
var magic = [4]byte{'V', 'L', 'T', '1'}

const version byte = 1

// Purpose names the kind of content an envelope carries. It is bound into
// the Associated Data so a chunk cannot be mistaken for an index, nor a
// record's entry file for one of its own chunks.
type Purpose string

const (
	PurposeIndex    Purpose = "index"
	PurposeEntry    Purpose = "entry"
	PurposeChunk    Purpose = "chunk"
	PurposeAudit    Purpose = "audit"
	PurposeMetadata Purpose = "metadata"
)

// Context describes what a particular envelope is for. RecordID is the zero
// UUID for envelopes that are not record-scoped (the index, audit events).
// ChunkIndex is zero for non-chunk envelopes.
type Context struct {
	Purpose    Purpose
	RecordID   uuid.UUID
	ChunkIndex uint32
}

// aad serializes the context into the Associated Data bound to the
// ciphertext's authentication tag.
func (c Context) aad() []byte {
	b := make([]byte, 0, 4+1+1+len(c.Purpose)+16+4)
	b = append(b, magic[:]...)
	b = append(b, version)
	b = append(b, byte(len(c.Purpose)))
	b = append(b, []byte(c.Purpose)...)
	rid := c.RecordID
	b = append(b, rid[:]...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], c.ChunkIndex)
	b = append(b, idx[:]...)
	return b
}

// Envelope is the in-memory, already-parsed form of an at-rest ciphertext
// container.
type Envelope struct {
	Version    byte
	AlgID      cryptoprim.AlgID
	Nonce      []byte
	Ciphertext []byte
}

// Seal encrypts plaintext under key using alg, binding ctx as Associated
// Data, and returns the resulting Envelope.
func Seal(alg cryptoprim.AlgID, key []byte, ctx Context, plaintext []byte) (*Envelope, error) {
	a, err := cryptoprim.NewAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	nonce, ciphertext, err := a.Seal(plaintext, ctx.aad())
	if err != nil {
		return nil, err
	}
	return &Envelope{Version: version, AlgID: alg, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Open decrypts e under key, verifying ctx matches the Associated Data the
// envelope was sealed with.
func (e *Envelope) Open(key []byte, ctx Context) ([]byte, error) {
	a, err := cryptoprim.NewAEAD(e.AlgID, key)
	if err != nil {
		return nil, err
	}
	return a.Open(e.Nonce, e.Ciphertext, ctx.aad())
}

// Marshal serializes e to the buffer wire format:
//
//	magic(4) | version(1) | alg_id(1) | nonce(12|24) | ctxt_len(u32 BE) | ciphertext‖tag
func (e *Envelope) Marshal() []byte {
	out := make([]byte, 0, 4+1+1+len(e.Nonce)+4+len(e.Ciphertext))
	out = append(out, magic[:]...)
	out = append(out, e.Version)
	out = append(out, byte(e.AlgID))
	out = append(out, e.Nonce...)
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(e.Ciphertext)))
	out = append(out, l[:]...)
	out = append(out, e.Ciphertext...)
	return out
}

// Unmarshal parses the buffer wire format produced by Marshal.
func Unmarshal(buf []byte) (*Envelope, error) {
	if len(buf) < 4+1+1 {
		return nil, fmt.Errorf("envelope too short")
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return nil, fmt.Errorf("bad envelope magic")
	}
	v := buf[4]
	alg := cryptoprim.AlgID(buf[5])
	nlen, err := cryptoprim.NonceLen(alg)
	if err != nil {
		return nil, err
	}
	off := 6
	if len(buf) < off+nlen+4 {
		return nil, fmt.Errorf("envelope truncated before nonce/length")
	}
	nonce := append([]byte(nil), buf[off:off+nlen]...)
	off += nlen
	ctLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	if uint32(len(buf)-off) < ctLen {
		return nil, fmt.Errorf("envelope truncated ciphertext")
	}
	ct := append([]byte(nil), buf[off:off+int(ctLen)]...)
	return &Envelope{Version: v, AlgID: alg, Nonce: nonce, Ciphertext: ct}, nil
}

// MarshalText renders the buffer wire format as base64, for envelopes that
// live inside text files (the index header, per-record entry files).
func (e *Envelope) MarshalText() string {
	return base64.StdEncoding.EncodeToString(e.Marshal())
}

// UnmarshalText parses the base64 form produced by MarshalText. It also
// accepts a raw (non-base64) buffer, since some legacy chunk writers store
// envelopes as raw bytes even in contexts that are nominally "text" — this
// read-side fallback exists purely for migration and new writes must always
// use one representation consistently per call site.
func UnmarshalText(s string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Fall back to treating s as already-raw bytes.
		return Unmarshal([]byte(s))
	}
	return Unmarshal(raw)
}
