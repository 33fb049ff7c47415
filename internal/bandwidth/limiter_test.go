package bandwidth

import (
	"context"
	"testing"
)

func TestNewLimiterEmptyIsNilLimiting(t *testing.T) {
	l, err := NewLimiter("")
	if err != nil {
		t.Fatalf("empty limit: %v", err)
	}
	if l != nil {
		t.Fatalf("expected nil limiter for empty string, got %v", l)
	}
	if !l.AllowN(1 << 30) {
		t.Fatalf("nil limiter must allow everything")
	}
	if err := l.WaitN(context.Background(), 1<<30); err != nil {
		t.Fatalf("nil limiter WaitN: %v", err)
	}
}

func TestNewLimiterParsesSuffixes(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1", 1 * 1024 * 1024},
		{"5M", 5 * 1024 * 1024},
		{"5MB", 5 * 1024 * 1024},
		{"512K", 512 * 1024},
		{"1G", 1024 * 1024 * 1024},
	}
	for _, c := range cases {
		l, err := NewLimiter(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got := int64(l.Rate()); got != c.want {
			t.Fatalf("%q: got rate %d, want %d", c.in, got, c.want)
		}
	}
}

func TestNewLimiterRejectsGarbage(t *testing.T) {
	if _, err := NewLimiter("not-a-size"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestWaitNConsumesBurst(t *testing.T) {
	l, err := NewLimiter("1K")
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if !l.AllowN(512) {
		t.Fatalf("expected small transfer to be allowed immediately")
	}
}
