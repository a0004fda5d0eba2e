// Package ratelimit fornece adapters HTTP (net/http) para proteção por host e
// limite de concorrência, usados na superfície RPC.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de transporte)
//   - application: casos de uso (decisão allow/deny, acquire/timeout)
//   - infra: implementações concretas (janela deslizante, token bucket, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo na superfície RPC:
//
//  1. Extrai a chave do cliente (header/XFF/IP)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 (rate limit) ou 503 (concorrência)
//  4. Se permitido, chama o próximo handler (orquestrador)
//
// A admissão por identidade (janela deslizante) não acontece aqui: ela fica no
// orquestrador, que conhece a identidade alvo de cada operação.
package ratelimit
