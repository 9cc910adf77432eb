// Package auth extrai a identidade do chamador a partir do header de credencial.
//
// O valor do token nunca é validado: qualquer string não vazia, depois de
// remover o esquema ("Bearer", "Token") e espaços, é a identidade. Ela serve
// só como chave de partição para cota e posse dos itens do vault.
package auth
