package domain

import (
	"context"
	"time"
)

// StatsEvent representa o desfecho de uma unidade de trabalho orquestrada.
//
// Op e Transport são strings genéricas ("CreateUser", "rpc", "stream") e
// Outcome é a categoria final ("ok", "resource_exhausted", "internal", ...).
//
// Observação: cuidado com cardinalidade. Key só deve ser persistida por
// implementações que controlem expiração.
type StatsEvent struct {
	Key     Key
	Allowed bool

	Op        string
	Transport string
	Outcome   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de admissão.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem chama deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
