package infra

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey() []byte { return bytes.Repeat([]byte{7}, 32) }

func TestXChaChaSealer_SealOpen(t *testing.T) {
	s, err := NewXChaChaSealer(testKey())
	if err != nil {
		t.Fatalf("NewXChaChaSealer: %v", err)
	}

	sealed, err := s.Seal("alice", []byte("s3cr3t"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("s3cr3t")) {
		t.Fatalf("plaintext visible in sealed payload")
	}

	got, err := s.Open("alice", sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != "s3cr3t" {
		t.Fatalf("expected s3cr3t, got %q", got)
	}
}

func TestXChaChaSealer_BoundToOwner(t *testing.T) {
	s, _ := NewXChaChaSealer(testKey())
	sealed, _ := s.Seal("alice", []byte("s3cr3t"))

	if _, err := s.Open("bob", sealed); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("expected ErrCorrupted opening with another owner, got %v", err)
	}
}

func TestXChaChaSealer_RejectsTruncated(t *testing.T) {
	s, _ := NewXChaChaSealer(testKey())
	if _, err := s.Open("alice", []byte("short")); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("expected ErrCorrupted, got %v", err)
	}
}

func TestSealerFromBase64(t *testing.T) {
	if s, err := SealerFromBase64(""); err != nil {
		t.Fatalf("unexpected error %v", err)
	} else if _, ok := s.(NopSealer); !ok {
		t.Fatalf("expected NopSealer for empty key, got %T", s)
	}

	if _, err := SealerFromBase64("not base64!"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := SealerFromBase64(base64.StdEncoding.EncodeToString([]byte("too short"))); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for short key, got %v", err)
	}

	s, err := SealerFromBase64(base64.StdEncoding.EncodeToString(testKey()))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if _, ok := s.(*XChaChaSealer); !ok {
		t.Fatalf("expected *XChaChaSealer, got %T", s)
	}
}
