package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Key identifica o chamador (o token do header de credencial, sem validação).
// É apenas uma chave de partição: nunca deve aparecer crua em logs.
type Key string

// Fingerprint devolve um hash curto da chave, seguro para logs e métricas.
func (k Key) Fingerprint() string {
	return strconv.FormatUint(xxhash.Sum64String(string(k)), 16)
}

// LimiterStore mantém uma janela fixa por chave e decide a admissão.
//
// CheckAndConsume deve ser atômico por chave: duas chamadas concorrentes
// nunca podem ler o mesmo contador e ambas serem admitidas com uma única
// vaga restante. Chaves diferentes não disputam o mesmo lock.
type LimiterStore interface {
	CheckAndConsume(key Key, now time.Time) Decision
	// Limit é o número de requisições admitidas por janela.
	Limit() int
}

type Decision struct {
	Allowed bool
	// Limit é o L configurado na janela que decidiu.
	Limit int
	// Remaining é quanto ainda cabe na janela atual (0 quando bloqueado).
	Remaining int
	// RetryAfter é o tempo até a janela reiniciar quando bloquear.
	// Em decisões admitidas é sempre 0.
	RetryAfter time.Duration
	// ResetAt é o fim da janela atual.
	ResetAt time.Time
}
