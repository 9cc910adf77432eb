package infra

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"vault-gateway/vault/domain"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidKey = errors.New("vault: master key must be 32 bytes")
	ErrCorrupted  = errors.New("vault: sealed payload corrupted")
)

// Sealer cifra o payload antes de ir para o store e decifra na volta.
// O dono entra como dado associado: um blob copiado para outro dono não abre.
type Sealer interface {
	Seal(owner domain.Owner, plaintext []byte) ([]byte, error)
	Open(owner domain.Owner, sealed []byte) ([]byte, error)
}

// NopSealer guarda o payload como veio (sem chave mestra configurada).
type NopSealer struct{}

func (NopSealer) Seal(_ domain.Owner, p []byte) ([]byte, error) { return p, nil }
func (NopSealer) Open(_ domain.Owner, p []byte) ([]byte, error) { return p, nil }

// XChaChaSealer usa XChaCha20-Poly1305 com nonce aleatório de 24 bytes,
// gravado na frente do ciphertext.
type XChaChaSealer struct {
	aead cipher.AEAD
}

func NewXChaChaSealer(key []byte) (*XChaChaSealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("vault: xchacha20: %w", err)
	}
	return &XChaChaSealer{aead: aead}, nil
}

// SealerFromBase64 monta o sealer a partir da chave em base64 (std);
// chave vazia devolve NopSealer.
func SealerFromBase64(encoded string) (Sealer, error) {
	if encoded == "" {
		return NopSealer{}, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	s, err := NewXChaChaSealer(key)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *XChaChaSealer) Seal(owner domain.Owner, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(owner)), nil
}

func (s *XChaChaSealer) Open(owner domain.Owner, sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, ErrCorrupted
	}
	out, err := s.aead.Open(nil, sealed[:n], sealed[n:], []byte(owner))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return out, nil
}
