// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela fixa, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + identidade + tradução para status/headers
//
// Fluxo no vault:
//
//  1. Extrai a identidade do header de credencial (pacote auth); sem ela, 401
//     e a cota não é tocada
//  2. Chama a camada application para consumir uma vaga da janela
//  3. Se bloqueado, responde 429 com X-RateLimit-Remaining=0 e o retry-after
//  4. Se permitido, chama o próximo handler (as rotas do vault)
//
// X-RateLimit-Remaining e X-RateLimit-Retry-After vão em toda resposta,
// inclusive nos erros do handler seguinte.
package ratelimit
