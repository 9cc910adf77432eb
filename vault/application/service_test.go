package application

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"vault-gateway/vault/domain"
	"vault-gateway/vault/infra"
)

func newService(t *testing.T, max int) (Service, *infra.MemoryStore) {
	t.Helper()
	sealer, err := infra.NewXChaChaSealer(bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	store := infra.NewMemoryStore()
	return Service{Store: store, Sealer: sealer, MaxPayload: max}, store
}

func TestService_CreateSealsAtRest(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, 0)

	it, err := svc.Create(ctx, "alice", []byte("top-secret"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if string(it.Payload) != "top-secret" {
		t.Fatalf("expected plaintext back, got %q", it.Payload)
	}

	raw, _ := store.List(ctx, "alice")
	if len(raw) != 1 || bytes.Contains(raw[0].Payload, []byte("top-secret")) {
		t.Fatalf("payload must be sealed in the store")
	}

	items, err := svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || string(items[0].Payload) != "top-secret" || items[0].ID != it.ID {
		t.Fatalf("unexpected list %+v", items)
	}
}

func TestService_ValidatesPayload(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, 8)

	if _, err := svc.Create(ctx, "alice", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty payload, got %v", err)
	}
	_, err := svc.Create(ctx, "alice", []byte(strings.Repeat("x", 9)))
	if !errors.Is(err, domain.ErrPayloadTooLarge) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrPayloadTooLarge wrapping ErrValidation, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("invalid payload must not be stored")
	}
	if svc.MaxPayloadBytes() != 8 {
		t.Fatalf("expected max 8, got %d", svc.MaxPayloadBytes())
	}
}

func TestService_UpdateOwnershipAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, 0)

	it, _ := svc.Create(ctx, "alice", []byte("v1"))

	if _, err := svc.Update(ctx, "bob", it.ID, []byte("v2")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
	if _, err := svc.Update(ctx, "alice", it.ID, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	up, err := svc.Update(ctx, "alice", it.ID, []byte("v2"))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if string(up.Payload) != "v2" || up.ID != it.ID || !up.CreatedAt.Equal(it.CreatedAt) {
		t.Fatalf("unexpected updated item %+v", up)
	}

	items, _ := svc.List(ctx, "alice")
	if string(items[0].Payload) != "v2" {
		t.Fatalf("expected v2 after update, got %q", items[0].Payload)
	}
}

type failingSealer struct{}

func (failingSealer) Seal(domain.Owner, []byte) ([]byte, error) { return nil, errors.New("no entropy") }
func (failingSealer) Open(domain.Owner, []byte) ([]byte, error) { return nil, errors.New("bad") }

func TestService_SealFailureLeavesItemUntouched(t *testing.T) {
	ctx := context.Background()
	store := infra.NewMemoryStore()
	plain := Service{Store: store}
	it, _ := plain.Create(ctx, "alice", []byte("v1"))

	broken := Service{Store: store, Sealer: failingSealer{}}
	if _, err := broken.Update(ctx, "alice", it.ID, []byte("v2")); err == nil {
		t.Fatalf("expected seal error")
	}

	items, _ := plain.List(ctx, "alice")
	if string(items[0].Payload) != "v1" || !items[0].UpdatedAt.Equal(it.UpdatedAt) {
		t.Fatalf("failed update must not mutate the item: %+v", items[0])
	}
}
