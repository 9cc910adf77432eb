package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vault-gateway/middleware/ratelimit/domain"
)

// ErrBusy indica que nenhuma vaga de concorrência ficou livre a tempo.
var ErrBusy = errors.New("concurrency: no free slot")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera até ctx cancelar.
//   - Se `AcquireTimeout > 0`, espera até o timeout.
//
// Em erro nenhuma vaga foi adquirida; o erro embrulha ErrBusy e a causa do ctx.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrBusy, acqCtx.Err())
	}
	return release, nil
}
