package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"vault-gateway/middleware/ratelimit/domain"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCapacity     = 100_000
	defaultShards       = 32
	defaultCleanupEvery = time.Minute
)

var (
	ErrInvalidLimit  = errors.New("ratelimit: limit must be > 0")
	ErrInvalidWindow = errors.New("ratelimit: window must be > 0")
)

// Store é uma implementação de infra baseada em janela fixa por chave.
//
// As janelas ficam em shards (xxhash da chave), cada shard um LRU com
// capacidade fixa: a memória é limitada mesmo com chaves infinitas.
// O lock do shard só protege o lookup; o contador fica sob o mutex da
// própria janela, então chaves diferentes não disputam lock.
type Store struct {
	shards       []*lru.Cache[domain.Key, *window]
	mask         uint64
	limit        int
	size         time.Duration
	capacity     int
	shardCount   int
	cleanupEvery time.Duration
	now          func() time.Time
	onEvict      func(domain.Key)
}

type window struct {
	mu    sync.Mutex
	count int
	start time.Time
	// dead marca janela removida do registro; quem ainda tem o ponteiro
	// precisa buscar de novo.
	dead bool
}

type StoreOption func(*Store)

// WithCapacity limita o total de chaves mantidas (somando os shards).
func WithCapacity(n int) StoreOption {
	return func(s *Store) { s.capacity = n }
}

// WithShards define o número de shards; é arredondado para potência de 2.
func WithShards(n int) StoreOption {
	return func(s *Store) { s.shardCount = n }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithClock troca o relógio usado pela limpeza periódica.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithOnEvict é chamado quando uma janela sai do registro (LRU ou limpeza).
// Roda fora do lock do shard, mas não deve bloquear.
func WithOnEvict(fn func(domain.Key)) StoreOption {
	return func(s *Store) { s.onEvict = fn }
}

func NewStore(limit int, size time.Duration, opts ...StoreOption) (*Store, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if size <= 0 {
		return nil, ErrInvalidWindow
	}

	s := &Store{
		limit:        limit,
		size:         size,
		capacity:     defaultCapacity,
		shardCount:   defaultShards,
		cleanupEvery: defaultCleanupEvery,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.capacity <= 0 {
		s.capacity = defaultCapacity
	}

	shards := nextPow2(s.shardCount)
	perShard := s.capacity / shards
	if perShard == 0 {
		// capacidade menor que o número de shards: um shard só, limite exato.
		shards, perShard = 1, s.capacity
	}
	s.shardCount = shards
	s.mask = uint64(shards - 1)
	s.shards = make([]*lru.Cache[domain.Key, *window], shards)
	for i := range s.shards {
		c, err := lru.NewWithEvict(perShard, s.evicted)
		if err != nil {
			return nil, err
		}
		s.shards[i] = c
	}
	return s, nil
}

func (s *Store) Limit() int                  { return s.limit }
func (s *Store) Window() time.Duration       { return s.size }
func (s *Store) Shards() int                 { return s.shardCount }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// Len devolve quantas chaves estão no registro agora.
func (s *Store) Len() int {
	n := 0
	for _, c := range s.shards {
		n += c.Len()
	}
	return n
}

// CheckAndConsume implementa domain.LimiterStore.
func (s *Store) CheckAndConsume(key domain.Key, now time.Time) domain.Decision {
	for {
		w := s.lookup(key, now)
		if dec, ok := w.consume(now, s.limit, s.size); ok {
			return dec
		}
		// janela removida entre o lookup e o lock: busca (ou cria) a nova.
	}
}

func (s *Store) lookup(key domain.Key, now time.Time) *window {
	c := s.shard(key)
	if w, ok := c.Get(key); ok {
		return w
	}
	fresh := &window{start: now}
	if prev, ok, _ := c.PeekOrAdd(key, fresh); ok {
		return prev
	}
	return fresh
}

func (s *Store) shard(key domain.Key) *lru.Cache[domain.Key, *window] {
	return s.shards[xxhash.Sum64String(string(key))&s.mask]
}

func (s *Store) evicted(key domain.Key, w *window) {
	w.mu.Lock()
	w.dead = true
	w.mu.Unlock()
	if s.onEvict != nil {
		s.onEvict(key)
	}
}

// Cleanup remove janelas já vencidas. Remover uma janela vencida não muda
// nenhuma decisão futura: o próximo request reiniciaria o contador de
// qualquer forma. Retorna quantas chaves saíram.
func (s *Store) Cleanup() int {
	now := s.now()
	removed := 0
	for _, c := range s.shards {
		for _, key := range c.Keys() {
			w, ok := c.Peek(key)
			if !ok || !w.markIfExpired(now, s.size) {
				continue
			}
			if cur, ok := c.Peek(key); ok && cur == w {
				c.Remove(key)
				removed++
			}
		}
	}
	return removed
}

// RunJanitor limpa chaves vencidas periodicamente até ctx encerrar.
// Bloqueia; feito para rodar dentro de um errgroup.
func (s *Store) RunJanitor(ctx context.Context) error {
	if s.cleanupEvery <= 0 {
		<-ctx.Done()
		return nil
	}

	t := time.NewTicker(s.cleanupEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Cleanup()
		}
	}
}

func (w *window) consume(now time.Time, limit int, size time.Duration) (domain.Decision, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dead {
		return domain.Decision{}, false
	}
	if now.Sub(w.start) >= size {
		w.start = now
		w.count = 0
	}

	resetAt := w.start.Add(size)
	if w.count+1 > limit {
		return domain.Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}, true
	}

	w.count++
	return domain.Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetAt:   resetAt,
	}, true
}

func (w *window) markIfExpired(now time.Time, size time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead || now.Sub(w.start) < size {
		return false
	}
	w.dead = true
	return true
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
