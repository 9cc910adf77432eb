package infra

import (
	"context"
	"maps"
	"sync"

	"vault-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
	// Exhausted conta admissões que gastaram a última vaga da janela.
	Exhausted int64
}

func (c *Counters) add(ev domain.StatsEvent) {
	switch {
	case !ev.Allowed:
		c.Denied++
	case ev.Remaining == 0:
		c.Allowed++
		c.Exhausted++
	default:
		c.Allowed++
	}
}

// MemoryStatsStore guarda contadores de decisões em memória.
// É o padrão quando o Redis de stats não está habilitado.
//
// Não faz expiração; com trackKeys a cardinalidade cresce com os chamadores,
// por isso as chaves são guardadas pelo fingerprint e o padrão é desligado.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byRoute[route]
	c.add(ev)
	s.byRoute[route] = c

	if s.trackKeys {
		fp := ev.Key.Fingerprint()
		k := s.byKey[fp]
		k.add(ev)
		s.byKey[fp] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}

// ByKey é indexado pelo fingerprint da chave (domain.Key.Fingerprint).
func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKey)
}
