package application

import (
	"time"

	"linkwithmentor/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação da admissão.
//
// Ele não sabe nada sobre transporte (headers/status/frames), apenas retorna
// uma decisão. Funciona com qualquer domain.Limiter: janela deslizante por
// identidade ou token bucket por host.
//
// RetryAfter só vale para limiters que não implementam domain.WaitReporter.
type Service struct {
	Limiter    domain.Limiter
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Limiter == nil {
		return domain.Decision{Allowed: true, Remaining: -1}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	allowed := s.Limiter.Allow(key)

	remaining := -1
	if q, ok := s.Limiter.(domain.QuotaReporter); ok {
		remaining = q.Remaining(key)
	}

	if allowed {
		return domain.Decision{Allowed: true, Remaining: remaining}
	}
	retry := s.RetryAfter
	if w, ok := s.Limiter.(domain.WaitReporter); ok {
		if d := w.RetryIn(key); d > 0 {
			retry = d
		}
	}
	return domain.Decision{Allowed: false, RetryAfter: retry, Remaining: remaining}
}
