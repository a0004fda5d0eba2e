package infra

import (
	"errors"
	"sync"
	"time"

	"linkwithmentor/middleware/ratelimit/domain"
)

// SlidingWindow admite no máximo `max` requisições por chave dentro da janela
// móvel `window`.
//
// Cada chave guarda os instantes das admissões, em ordem. Instantes vencidos são
// podados de forma preguiçosa a cada Allow; Cleanup é a única poda de todas as
// chaves (chamada pelo janitor, se ligado).
//
// Um único mutex protege o mapa inteiro: a seção crítica é curta e não faz I/O,
// e duas requisições da mesma chave nunca cruzam o limite juntas.
type SlidingWindow struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration

	clock        Clock
	cleanupEvery time.Duration
}

type WindowOption func(*SlidingWindow)

func WithClock(c Clock) WindowOption {
	return func(w *SlidingWindow) {
		if c != nil {
			w.clock = c
		}
	}
}

func WithWindowCleanupEvery(d time.Duration) WindowOption {
	return func(w *SlidingWindow) { w.cleanupEvery = d }
}

func NewSlidingWindow(max int, window time.Duration, opts ...WindowOption) (*SlidingWindow, error) {
	if max <= 0 {
		return nil, errors.New("sliding window: max requests must be > 0")
	}
	if window <= 0 {
		return nil, errors.New("sliding window: window must be > 0")
	}
	w := &SlidingWindow{
		hits:         make(map[string][]time.Time),
		max:          max,
		window:       window,
		clock:        realClock{},
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *SlidingWindow) Max() int                    { return w.max }
func (w *SlidingWindow) Window() time.Duration       { return w.window }
func (w *SlidingWindow) CleanupEvery() time.Duration { return w.cleanupEvery }

// Allow implementa domain.Limiter (check-and-admit).
func (w *SlidingWindow) Allow(key domain.Key) bool {
	k := string(key)
	now := w.clock.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	hits := prune(w.hits[k], now.Add(-w.window))
	if len(hits) >= w.max {
		w.hits[k] = hits
		return false
	}
	w.hits[k] = append(hits, now)
	return true
}

// Remaining implementa domain.QuotaReporter. Não altera estado.
func (w *SlidingWindow) Remaining(key domain.Key) int {
	cutoff := w.clock.Now().Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	valid := 0
	for _, at := range w.hits[string(key)] {
		if at.After(cutoff) {
			valid++
		}
	}
	if valid >= w.max {
		return 0
	}
	return w.max - valid
}

// RetryIn implementa domain.WaitReporter: tempo até a admissão mais antiga
// sair da janela, quando a chave está no limite. Não altera estado.
func (w *SlidingWindow) RetryIn(key domain.Key) time.Duration {
	now := w.clock.Now()
	cutoff := now.Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	hits := w.hits[string(key)]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if len(hits)-i < w.max {
		return 0
	}
	return hits[i].Add(w.window).Sub(now)
}

// Cleanup poda todas as chaves e remove as que ficaram vazias. Idempotente.
func (w *SlidingWindow) Cleanup() {
	cutoff := w.clock.Now().Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	for k, hits := range w.hits {
		hits = prune(hits, cutoff)
		if len(hits) == 0 {
			delete(w.hits, k)
			continue
		}
		w.hits[k] = hits
	}
}

// Keys retorna quantas identidades estão sendo rastreadas.
func (w *SlidingWindow) Keys() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

// StartJanitor inicia uma goroutine que chama Cleanup periodicamente.
// Pare cancelando o contexto.
func (w *SlidingWindow) StartJanitor(ctx DoneContext) {
	runJanitor(ctx, w.cleanupEvery, w.Cleanup)
}

// prune descarta, in-place, os instantes que não são posteriores a cutoff.
// hits está em ordem crescente.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	n := copy(hits, hits[i:])
	return hits[:n]
}
