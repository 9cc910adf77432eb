package application

import (
	"context"
	"fmt"
	"log/slog"

	"vault-gateway/vault/domain"
)

const DefaultMaxPayload = 64 << 10

// Sealer é o que o serviço precisa para cifrar o payload em repouso.
type Sealer interface {
	Seal(owner domain.Owner, plaintext []byte) ([]byte, error)
	Open(owner domain.Owner, sealed []byte) ([]byte, error)
}

// Service expõe Create/List/Update sobre um domain.Store.
//
// O store só vê payload selado; o chamador só vê payload aberto.
type Service struct {
	Store      domain.Store
	Sealer     Sealer
	MaxPayload int
	Logger     *slog.Logger
}

func (s Service) Create(ctx context.Context, owner domain.Owner, payload []byte) (domain.Item, error) {
	if err := s.validate(payload); err != nil {
		return domain.Item{}, err
	}
	sealed, err := s.seal(owner, payload)
	if err != nil {
		return domain.Item{}, err
	}

	it, err := s.Store.Create(ctx, owner, sealed)
	if err != nil {
		return domain.Item{}, err
	}
	s.logger().DebugContext(ctx, "vault item created",
		slog.String("caller", owner.Fingerprint()),
		slog.String("id", it.ID),
		slog.Int("bytes", len(payload)),
	)

	it.Payload = append([]byte(nil), payload...)
	return it, nil
}

func (s Service) List(ctx context.Context, owner domain.Owner) ([]domain.Item, error) {
	items, err := s.Store.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Payload, err = s.open(owner, items[i].Payload); err != nil {
			return nil, fmt.Errorf("open item %s: %w", items[i].ID, err)
		}
	}
	return items, nil
}

// Update troca o payload. A selagem acontece antes de tocar no item:
// se falhar, o item fica como estava.
func (s Service) Update(ctx context.Context, owner domain.Owner, id string, payload []byte) (domain.Item, error) {
	if err := s.validate(payload); err != nil {
		return domain.Item{}, err
	}
	sealed, err := s.seal(owner, payload)
	if err != nil {
		return domain.Item{}, err
	}

	it, err := s.Store.Update(ctx, owner, id, sealed)
	if err != nil {
		return domain.Item{}, err
	}
	s.logger().DebugContext(ctx, "vault item updated",
		slog.String("caller", owner.Fingerprint()),
		slog.String("id", it.ID),
		slog.Int("bytes", len(payload)),
	)

	it.Payload = append([]byte(nil), payload...)
	return it, nil
}

func (s Service) validate(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", domain.ErrValidation)
	}
	if len(payload) > s.maxPayload() {
		return domain.ErrPayloadTooLarge
	}
	return nil
}

func (s Service) MaxPayloadBytes() int { return s.maxPayload() }

func (s Service) maxPayload() int {
	if s.MaxPayload > 0 {
		return s.MaxPayload
	}
	return DefaultMaxPayload
}

func (s Service) seal(owner domain.Owner, p []byte) ([]byte, error) {
	if s.Sealer == nil {
		return p, nil
	}
	out, err := s.Sealer.Seal(owner, p)
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}
	return out, nil
}

func (s Service) open(owner domain.Owner, p []byte) ([]byte, error) {
	if s.Sealer == nil {
		return p, nil
	}
	return s.Sealer.Open(owner, p)
}

func (s Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
