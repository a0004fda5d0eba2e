package stream

import (
	"encoding/json"
	"errors"
	"time"

	"linkwithmentor/service/domain"
)

// ALPN negociado no handshake TLS.
const ALPN = "lwm/1"

type Request struct {
	ID            string          `json:"id"`
	Op            domain.Op       `json:"op"`
	Authorization string          `json:"authorization,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

type Response struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	// RetryAfterMs só aparece em resource_exhausted.
	RetryAfterMs int64           `json:"retry_after_ms,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

func errorResponse(id string, err error) Response {
	resp := Response{
		ID:      id,
		Code:    string(domain.KindOf(err)),
		Message: domain.PublicMessage(err),
	}
	var derr *domain.Error
	if errors.As(err, &derr) && derr.RetryAfter > 0 {
		resp.RetryAfterMs = derr.RetryAfter.Milliseconds()
	}
	return resp
}

// Err converte uma resposta de falha de volta em *domain.Error (lado cliente).
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	return &domain.Error{
		Kind:       domain.Kind(r.Code),
		Message:    r.Message,
		RetryAfter: time.Duration(r.RetryAfterMs) * time.Millisecond,
	}
}
