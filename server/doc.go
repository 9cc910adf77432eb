// Package server monta o handler HTTP do vault.
//
// Cada request passa por: identidade → cota (ratelimit.Middleware) →
// limite de concorrência → rota do vault. Os headers de cota são
// escritos antes da rota, então vão em todas as respostas, inclusive 4xx/5xx.
//
//	POST /vault             201 item criado
//	GET  /vault/items       200 {"items": [...]} do chamador
//	PUT  /vault/items/{id}  200 item atualizado, 404 se o id não é do chamador
package server
