package domain

import "context"

// SlotPool limita quantas requisições do vault ficam em voo ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente
// uma vez; com ok=false nenhuma vaga foi tomada e release é nil.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
