package domain

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus é sempre calculado na hora; nunca é cacheado.
type HealthStatus struct {
	Status              string `json:"status"`
	Database            bool   `json:"database"`
	NotificationGateway bool   `json:"notification_gateway"`
	UptimeSeconds       uint64 `json:"uptime_seconds"`
}

func (h HealthStatus) Healthy() bool { return h.Status == StatusHealthy }
