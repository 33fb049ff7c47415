package envelope

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"github.com/veilcask/veilcask/internal/cryptoprim"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	k, err := cryptoprim.RandomBytes(32)
	if err != nil {
		t.Fatalf("random key: %v", err)
	}
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(t)
	ctx := Context{Purpose: PurposeEntry, RecordID: uuid.New()}
	plaintext := []byte("hello vault")

	env, err := Seal(cryptoprim.AlgXChaCha20Poly1305, key, ctx, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := env.Open(key, ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	key := testKey(t)
	ctx := Context{Purpose: PurposeChunk, RecordID: uuid.New(), ChunkIndex: 3}
	env, err := Seal(cryptoprim.AlgAES256GCM, key, ctx, []byte("chunk payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	buf := env.Marshal()
	parsed, err := Unmarshal(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	pt, err := parsed.Open(key, ctx)
	if err != nil {
		t.Fatalf("open parsed: %v", err)
	}
	if string(pt) != "chunk payload" {
		t.Fatalf("got %q", pt)
	}

	text := env.MarshalText()
	parsedText, err := UnmarshalText(text)
	if err != nil {
		t.Fatalf("unmarshal text: %v", err)
	}
	if _, err := parsedText.Open(key, ctx); err != nil {
		t.Fatalf("open parsed text: %v", err)
	}
}

func TestTamperDetection(t *testing.T) {
	key := testKey(t)
	ctx := Context{Purpose: PurposeEntry, RecordID: uuid.New()}
	env, err := Seal(cryptoprim.AlgXChaCha20Poly1305, key, ctx, []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	buf := env.Marshal()
	for i := range buf {
		tampered := append([]byte(nil), buf...)
		tampered[i] ^= 0xFF
		parsed, err := Unmarshal(tampered)
		if err != nil {
			// A flipped magic/version/length byte may fail to parse at all;
			// that is an acceptable rejection too.
			continue
		}
		if _, err := parsed.Open(key, ctx); err == nil {
			t.Fatalf("byte %d: tampered envelope opened successfully", i)
		}
	}
}

func TestContextBindingMismatch(t *testing.T) {
	key := testKey(t)
	recA, recB := uuid.New(), uuid.New()
	env, err := Seal(cryptoprim.AlgXChaCha20Poly1305, key, Context{Purpose: PurposeChunk, RecordID: recA, ChunkIndex: 0}, []byte("data"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := env.Open(key, Context{Purpose: PurposeChunk, RecordID: recB, ChunkIndex: 0}); err == nil {
		t.Fatalf("opened under wrong record id")
	}
	if _, err := env.Open(key, Context{Purpose: PurposeChunk, RecordID: recA, ChunkIndex: 1}); err == nil {
		t.Fatalf("opened under wrong chunk index")
	}
}
