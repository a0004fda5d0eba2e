package application

import (
	"context"
	"time"

	"linkwithmentor/service/domain"
)

const defaultProbeTimeout = 2 * time.Second

// HealthChecker sonda a persistência a cada chamada (sem cache e sem retry).
type HealthChecker struct {
	Prober domain.Prober
	// NotifierConfigured indica se o gateway de push foi construído na subida.
	NotifierConfigured bool
	Timeout            time.Duration
	StartedAt          time.Time
	Now                func() time.Time
}

func (h HealthChecker) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h HealthChecker) probe(ctx context.Context) bool {
	if h.Prober == nil {
		return false
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return h.Prober.Ping(ctx) == nil
}

func (h HealthChecker) CheckHealth(ctx context.Context) domain.HealthStatus {
	db := h.probe(ctx)
	st := domain.HealthStatus{
		Status:              domain.StatusUnhealthy,
		Database:            db,
		NotificationGateway: h.NotifierConfigured,
	}
	if db {
		st.Status = domain.StatusHealthy
	}
	if !h.StartedAt.IsZero() {
		if up := h.now().Sub(h.StartedAt); up > 0 {
			st.UptimeSeconds = uint64(up / time.Second)
		}
	}
	return st
}

func (h HealthChecker) CheckReadiness(ctx context.Context) bool {
	return h.probe(ctx)
}
