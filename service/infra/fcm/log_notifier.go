package fcm

import (
	"context"

	"github.com/sirupsen/logrus"

	"linkwithmentor/service/domain"
)

// LogNotifier só registra a entrega em log. Usado quando não há credenciais.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func (n LogNotifier) Send(_ context.Context, token, title, _ string, p domain.Payload) error {
	log := n.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"token":             maskToken(token),
		"title":             title,
		"notification_type": p.Type(),
	}).Info("push delivery (log only)")
	return nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return "****" + token[len(token)-6:]
}
