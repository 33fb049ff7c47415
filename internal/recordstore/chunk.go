package recordstore

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/cryptoprim"
	"github.com/veilcask/veilcask/internal/envelope"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// ChunkHashAlgorithm selects the per-chunk hash reported in progress output;
// the record's own SHA256 field is always whole-file SHA-256 regardless of
// this choice (§3.2 invariant 4).
type ChunkHashAlgorithm string

const (
	HashSHA256 ChunkHashAlgorithm = "sha256"
	HashSHA512 ChunkHashAlgorithm = "sha512"
	HashSHA1   ChunkHashAlgorithm = "sha1"
	HashBLAKE3 ChunkHashAlgorithm = "blake3"
)

func newChunkHasher(algorithm ChunkHashAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case HashSHA256, "":
		return sha256.New(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashSHA1:
		return sha1.New(), nil
	case HashBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported chunk hash algorithm: %s", algorithm)
	}
}

// FileWriteOptions configures AddFile's chunking behavior.
type FileWriteOptions struct {
	ChunkSize int64
	HashAlg   ChunkHashAlgorithm
	Progress  func(processed, total int64)
}

// FileWriteResult reports what AddFile produced, to merge into the
// caller's Record.
type FileWriteResult struct {
	ChunkCount int
	Size       int64
	SHA256     string
}

// AddFile streams src through chunking, sealing each chunk independently
// under entryKey with AAD bound to (id, chunk index), and writes them under
// the vault's files/ directory. It never holds more than one chunk buffer
// in memory (encrypt-on-write, §4.4).
func (s *Store) AddFile(id string, src io.Reader, total int64, entryKey []byte, opts FileWriteOptions) (FileWriteResult, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return FileWriteResult{}, fmt.Errorf("invalid record id %q: %w", id, err)
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = constants.DefaultChunkSize
	}
	hashAlg := opts.HashAlg
	if hashAlg == "" {
		hashAlg = HashSHA256
	}

	if err := os.MkdirAll(s.root+"/"+constants.FilesDirName, constants.SecureDirPerms); err != nil {
		return FileWriteResult{}, fmt.Errorf("mkdir files dir: %w", err)
	}

	buf := make([]byte, chunkSize)
	wholeHasher := sha256.New()
	var processed int64
	chunks := 0
	// staged holds chunk paths written so far, so a mid-stream failure can
	// be cleaned up instead of leaving a partial File record on disk.
	var staged []string
	cleanup := func() {
		for _, p := range staged {
			_ = os.Remove(p)
		}
	}

	for {
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			chunkHasher, herr := newChunkHasher(hashAlg)
			if herr != nil {
				cleanup()
				return FileWriteResult{}, herr
			}
			chunkHasher.Write(buf[:n])
			wholeHasher.Write(buf[:n])

			env, serr := envelope.Seal(cryptoprim.AlgXChaCha20Poly1305, entryKey,
				envelope.Context{Purpose: envelope.PurposeChunk, RecordID: rid, ChunkIndex: uint32(chunks)},
				buf[:n])
			if serr != nil {
				cleanup()
				return FileWriteResult{}, fmt.Errorf("seal chunk %d: %w", chunks, serr)
			}
			path := s.chunkPath(id, chunks, chunkCountUnknown)
			if werr := os.WriteFile(path, env.Marshal(), constants.SecureFilePerms); werr != nil {
				cleanup()
				return FileWriteResult{}, fmt.Errorf("write chunk %d: %w", chunks, werr)
			}
			staged = append(staged, path)
			chunks++
			processed += int64(n)
			if opts.Progress != nil {
				opts.Progress(processed, total)
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			cleanup()
			return FileWriteResult{}, fmt.Errorf("read source: %w", readErr)
		}
	}

	if chunks == 0 {
		// An empty file is still one (empty) chunk, so ChunkCount is never 0
		// for a File record (§3.2 invariant 4 requires n chunks exist).
		env, serr := envelope.Seal(cryptoprim.AlgXChaCha20Poly1305, entryKey,
			envelope.Context{Purpose: envelope.PurposeChunk, RecordID: rid, ChunkIndex: 0}, nil)
		if serr != nil {
			return FileWriteResult{}, fmt.Errorf("seal empty chunk: %w", serr)
		}
		path := s.chunkPath(id, 0, chunkCountUnknown)
		if werr := os.WriteFile(path, env.Marshal(), constants.SecureFilePerms); werr != nil {
			return FileWriteResult{}, fmt.Errorf("write empty chunk: %w", werr)
		}
		staged = append(staged, path)
		chunks = 1
	}

	// Rename chunk files to their final single-vs-multi naming now that the
	// total chunk count is known (chunkPath's naming depends on it).
	for i, p := range staged {
		final := s.chunkPath(id, i, chunks)
		if p != final {
			if err := os.Rename(p, final); err != nil {
				cleanup()
				return FileWriteResult{}, fmt.Errorf("finalize chunk %d name: %w", i, err)
			}
		}
	}

	return FileWriteResult{ChunkCount: chunks, Size: processed, SHA256: hex.EncodeToString(wholeHasher.Sum(nil))}, nil
}

// ReadSealedChunks returns every chunk's raw, still-sealed bytes in order,
// for cloud sync's chunk-by-chunk upload (it never decrypts).
func (s *Store) ReadSealedChunks(id string, chunkCount int) ([][]byte, error) {
	out := make([][]byte, chunkCount)
	for i := 0; i < chunkCount; i++ {
		raw, err := os.ReadFile(s.chunkPath(id, i, chunkCount))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, vaulterr.WithChunk(i, err)
			}
			return nil, fmt.Errorf("read chunk %d: %w", i, err)
		}
		out[i] = raw
	}
	return out, nil
}

// RekeyChunks decrypts every chunk of a File record under oldKey and
// reseals it under newKey in place, for passphrase rotation. A mid-stream
// failure leaves some chunks already rekeyed and the rest still under
// oldKey; the caller is expected to abort the whole rotation on any error
// rather than attempt a partial commit.
func (s *Store) RekeyChunks(id string, chunkCount int, oldKey, newKey []byte) error {
	rid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid record id %q: %w", id, err)
	}
	for i := 0; i < chunkCount; i++ {
		path := s.chunkPath(id, i, chunkCount)
		raw, rerr := os.ReadFile(path)
		if rerr != nil {
			if os.IsNotExist(rerr) {
				return vaulterr.WithChunk(i, rerr)
			}
			return fmt.Errorf("read chunk %d: %w", i, rerr)
		}
		env, perr := envelope.Unmarshal(raw)
		if perr != nil {
			return vaulterr.WithChunk(i, perr)
		}
		ctx := envelope.Context{Purpose: envelope.PurposeChunk, RecordID: rid, ChunkIndex: uint32(i)}
		pt, oerr := env.Open(oldKey, ctx)
		if oerr != nil {
			return vaulterr.WithChunk(i, oerr)
		}
		resealed, serr := envelope.Seal(cryptoprim.AlgXChaCha20Poly1305, newKey, ctx, pt)
		if serr != nil {
			return vaulterr.WithChunk(i, serr)
		}
		if werr := os.WriteFile(path, resealed.Marshal(), constants.SecureFilePerms); werr != nil {
			return fmt.Errorf("write rekeyed chunk %d: %w", i, werr)
		}
	}
	return nil
}

// chunkCountUnknown is passed to chunkPath while streaming, before the
// final chunk count is known; it always selects the multi-chunk naming
// scheme so in-flight files never collide with the eventual single-chunk
// name. AddFile renames to final names once the count is known.
const chunkCountUnknown = 2

// GetFile streams a File record's chunks in order to dst, decrypting each
// with entryKey and verifying its bound context. On any chunk's AEAD
// failure the stream aborts with a ChunkCorrupt(k) error and dst's prior
// writes are not rolled back (caller should treat dst as invalid and
// remove it, per §8.2 S6).
func (s *Store) GetFile(id string, chunkCount int, dst io.Writer, entryKey []byte, progress func(processed, total int64)) error {
	rid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid record id %q: %w", id, err)
	}
	var processed int64
	for i := 0; i < chunkCount; i++ {
		path := s.chunkPath(id, i, chunkCount)
		raw, rerr := os.ReadFile(path)
		if rerr != nil {
			if os.IsNotExist(rerr) {
				return vaulterr.WithChunk(i, rerr)
			}
			return fmt.Errorf("read chunk %d: %w", i, rerr)
		}
		env, perr := envelope.Unmarshal(raw)
		if perr != nil {
			return vaulterr.WithChunk(i, perr)
		}
		pt, oerr := env.Open(entryKey, envelope.Context{Purpose: envelope.PurposeChunk, RecordID: rid, ChunkIndex: uint32(i)})
		if oerr != nil {
			return vaulterr.WithChunk(i, oerr)
		}
		if _, werr := dst.Write(pt); werr != nil {
			return fmt.Errorf("write chunk %d to destination: %w", i, werr)
		}
		processed += int64(len(pt))
		if progress != nil {
			progress(processed, 0)
		}
	}
	return nil
}
