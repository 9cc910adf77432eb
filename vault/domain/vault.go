package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	ratedomain "vault-gateway/middleware/ratelimit/domain"
)

var (
	// ErrNotFound cobre id inexistente e id de outro dono: o chamador não
	// consegue distinguir os dois casos.
	ErrNotFound = errors.New("vault: item not found")

	ErrValidation = errors.New("vault: invalid payload")
	// ErrPayloadTooLarge embrulha ErrValidation.
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrValidation)
)

// Owner é a identidade do chamador, a mesma chave usada pelo rate limit.
type Owner = ratedomain.Key

// Item é um segredo guardado. Owner e CreatedAt nunca mudam depois do Create;
// CreatedAt <= UpdatedAt sempre.
type Item struct {
	ID        string
	Owner     Owner
	Payload   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone copia o payload para que o chamador não compartilhe memória com o store.
func (it Item) Clone() Item {
	if it.Payload != nil {
		it.Payload = append([]byte(nil), it.Payload...)
	}
	return it
}

// Store guarda itens com escopo por dono. Implementações são seguras para
// uso concorrente; Update no mesmo id é serializado.
type Store interface {
	Create(ctx context.Context, owner Owner, payload []byte) (Item, error)
	// List devolve os itens do dono em ordem de criação; vazio não é erro.
	List(ctx context.Context, owner Owner) ([]Item, error)
	Update(ctx context.Context, owner Owner, id string, payload []byte) (Item, error)
}
