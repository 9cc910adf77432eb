package application

import (
	"time"

	"vault-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Now é o relógio usado para a janela; nil usa time.Now.
type Service struct {
	Store domain.LimiterStore
	Now   func() time.Time
}

// Decide consome uma vaga da janela de key, se houver.
// Sem Store configurado tudo é admitido.
func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	return s.Store.CheckAndConsume(key, s.now())
}

// Quota é o que reportamos quando nada foi consumido (ex.: 401): a cota cheia.
func (s Service) Quota() domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	l := s.Store.Limit()
	return domain.Decision{Allowed: true, Limit: l, Remaining: l}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
