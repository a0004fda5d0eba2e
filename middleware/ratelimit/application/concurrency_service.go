package application

import (
	"context"
	"errors"
	"time"

	"linkwithmentor/middleware/ratelimit/domain"
)

// ErrSaturated indica que nenhuma vaga ficou livre dentro do AcquireTimeout.
var ErrSaturated = errors.New("ratelimit: no free slot")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP ou QUIC.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout.
//
// Em caso de falha, retorna ctx.Err() quando o contexto do chamador encerrou
// (ex.: shutdown) e ErrSaturated quando apenas o timeout de aquisição expirou.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrSaturated
}
