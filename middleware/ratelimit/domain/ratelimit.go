package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de transporte.

import "time"

// Key identifica o "balde" de contagem: identidade externa, id de usuário,
// host remoto, etc. Quem monta a chave decide a política.
type Key string

// Limiter decide, por chave, se uma ação é permitida agora.
//
// Allow já registra a admissão quando retorna true (check-and-admit atômico).
type Limiter interface {
	Allow(Key) bool
}

// QuotaReporter é opcional: limiters que sabem quantas admissões ainda
// restam para uma chave, sem alterar estado.
type QuotaReporter interface {
	Remaining(Key) int
}

// WaitReporter é opcional: limiters que sabem quanto falta para a chave
// voltar a ser admitida. 0 quando já há vaga.
type WaitReporter interface {
	RetryIn(Key) time.Duration
}

type Decision struct {
	Allowed bool
	// RetryAfter é a espera sugerida ao cliente quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	// Remaining é -1 quando o limiter não implementa QuotaReporter.
	Remaining int
}
