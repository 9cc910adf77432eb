package infra

import (
	"context"
	"sync"

	"vault-gateway/middleware/ratelimit/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um semáforo baseado em channel com capacidade `max`.
// Com max <= 0 não há limite e retorna nil (o serviço trata nil como livre).
func NewChanPool(max int) domain.SlotPool {
	if max <= 0 {
		return nil
	}
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, false
	}
	// release idempotente: um defer duplicado não pode devolver vaga de outro.
	var once sync.Once
	return func() { once.Do(func() { <-p.sem }) }, true
}

// InFlight devolve quantas vagas estão ocupadas agora.
func (p *chanPool) InFlight() int { return len(p.sem) }
