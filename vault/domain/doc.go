// Package domain define o item do vault, os erros e o contrato do store.
//
// Não depende de net/http nem da implementação em memória.
package domain
