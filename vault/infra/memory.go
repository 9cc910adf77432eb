package infra

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"vault-gateway/vault/domain"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const defaultShards = 32

// MemoryStore guarda os itens em memória, sem durabilidade.
//
// Itens ficam em shards por xxhash do id; o índice por dono em shards por
// xxhash do dono. O lock do shard protege só o mapa: a mutação de um item
// acontece sob o mutex do próprio item, então itens diferentes não se
// bloqueiam e dois Update no mesmo id são serializados.
type MemoryStore struct {
	items  []itemShard
	owners []ownerShard
	mask   uint64

	now   func() time.Time
	newID func() (string, error)
}

type itemShard struct {
	mu sync.RWMutex
	m  map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	item domain.Item
}

type ownerShard struct {
	mu sync.RWMutex
	// ids em ordem de criação
	m map[domain.Owner][]string
}

type MemoryOption func(*MemoryStore)

// WithShards define o número de shards; é arredondado para potência de 2.
func WithShards(n int) MemoryOption {
	return func(s *MemoryStore) {
		s.items = make([]itemShard, nextPow2(n))
	}
}

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithIDGenerator troca o gerador de ids (padrão: UUIDv7). Precisa ser
// seguro para uso concorrente e nunca repetir.
func WithIDGenerator(fn func() (string, error)) MemoryOption {
	return func(s *MemoryStore) { s.newID = fn }
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		items: make([]itemShard, defaultShards),
		now:   time.Now,
		newID: newUUIDv7,
	}
	for _, opt := range opts {
		opt(s)
	}

	n := len(s.items)
	s.mask = uint64(n - 1)
	s.owners = make([]ownerShard, n)
	for i := range s.items {
		s.items[i].m = make(map[string]*entry)
		s.owners[i].m = make(map[domain.Owner][]string)
	}
	return s
}

func (s *MemoryStore) itemShard(id string) *itemShard {
	return &s.items[xxhash.Sum64String(id)&s.mask]
}

func (s *MemoryStore) ownerShard(owner domain.Owner) *ownerShard {
	return &s.owners[xxhash.Sum64String(string(owner))&s.mask]
}

func (s *MemoryStore) Create(ctx context.Context, owner domain.Owner, payload []byte) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}

	id, err := s.newID()
	if err != nil {
		return domain.Item{}, fmt.Errorf("vault: generate id: %w", err)
	}

	now := s.now()
	e := &entry{item: domain.Item{
		ID:        id,
		Owner:     owner,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: now,
		UpdatedAt: now,
	}}
	// cópia antes de publicar: depois do insert outro Update pode mexer no item
	out := e.item.Clone()

	sh := s.itemShard(id)
	sh.mu.Lock()
	if _, dup := sh.m[id]; dup {
		sh.mu.Unlock()
		return domain.Item{}, fmt.Errorf("vault: duplicate id %q", id)
	}
	sh.m[id] = e
	sh.mu.Unlock()

	// o índice só vê o id depois do item existir, então List nunca acha buraco
	idx := s.ownerShard(owner)
	idx.mu.Lock()
	idx.m[owner] = append(idx.m[owner], id)
	idx.mu.Unlock()

	return out, nil
}

func (s *MemoryStore) List(ctx context.Context, owner domain.Owner) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := s.ownerShard(owner)
	idx.mu.RLock()
	ids := slices.Clone(idx.m[owner])
	idx.mu.RUnlock()

	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		e := s.lookup(id)
		if e == nil {
			continue
		}
		e.mu.Lock()
		it := e.item.Clone()
		e.mu.Unlock()
		out = append(out, it)
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, owner domain.Owner, id string, payload []byte) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}

	e := s.lookup(id)
	if e == nil {
		return domain.Item{}, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item.Owner != owner {
		return domain.Item{}, domain.ErrNotFound
	}

	now := s.now()
	if !now.After(e.item.UpdatedAt) {
		// relógio sem resolução (ou voltou): UpdatedAt continua estritamente crescente
		now = e.item.UpdatedAt.Add(time.Nanosecond)
	}
	e.item.Payload = append([]byte(nil), payload...)
	e.item.UpdatedAt = now
	return e.item.Clone(), nil
}

// Len devolve o total de itens guardados.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.items {
		sh := &s.items[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

func (s *MemoryStore) lookup(id string) *entry {
	sh := s.itemShard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.m[id]
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

var _ domain.Store = (*MemoryStore)(nil)
