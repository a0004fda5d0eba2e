// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SlidingWindow: janela deslizante por identidade (admissão do orquestrador)
//   - Store: token bucket por chave usando golang.org/x/time/rate (proteção por host)
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: estatísticas de desfecho das requisições
package infra
