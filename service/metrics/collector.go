// Package metrics mantém os contadores agregados do processo.
//
// Cada contador é um atomic.Uint64 independente: não há lock combinado, então um
// observador pode ver, por instantes, failed > 0 com total == 0 enquanto
// incrementos concorrentes estão em voo. Depois que todos os incrementos
// terminam, os valores batem com o número de chamadas.
package metrics

import (
	"math"
	"sync/atomic"
)

// Collector é construído explicitamente e passado adiante (não é global).
// Não existe decremento nem reset.
type Collector struct {
	total         atomic.Uint64
	successful    atomic.Uint64
	failed        atomic.Uint64
	users         atomic.Uint64
	sessions      atomic.Uint64
	notifications atomic.Uint64
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) IncRequests()          { c.total.Add(1) }
func (c *Collector) IncSuccessful()        { c.successful.Add(1) }
func (c *Collector) IncFailed()            { c.failed.Add(1) }
func (c *Collector) IncUsersCreated()      { c.users.Add(1) }
func (c *Collector) IncSessionsCreated()   { c.sessions.Add(1) }
func (c *Collector) IncNotificationsSent() { c.notifications.Add(1) }

// Snapshot lê cada contador uma vez, sem lock combinado.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:          c.total.Load(),
		SuccessfulRequests:     c.successful.Load(),
		FailedRequests:         c.failed.Load(),
		TotalUsersCreated:      c.users.Load(),
		TotalSessionsCreated:   c.sessions.Load(),
		TotalNotificationsSent: c.notifications.Load(),
	}
}

// Snapshot é uma cópia imutável dos contadores num instante.
type Snapshot struct {
	TotalRequests          uint64 `json:"total_requests"`
	SuccessfulRequests     uint64 `json:"successful_requests"`
	FailedRequests         uint64 `json:"failed_requests"`
	TotalUsersCreated      uint64 `json:"total_users_created"`
	TotalSessionsCreated   uint64 `json:"total_sessions_created"`
	TotalNotificationsSent uint64 `json:"total_notifications_sent"`
}

// SuccessRate é successful/total*100, ou 0 quando total é 0.
func (s Snapshot) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100
}

// Report é a forma publicada do snapshot, com a taxa arredondada em 2 casas.
type Report struct {
	Snapshot
	SuccessRate float64 `json:"success_rate"`
}

func (s Snapshot) Report() Report {
	return Report{Snapshot: s, SuccessRate: math.Round(s.SuccessRate()*100) / 100}
}
