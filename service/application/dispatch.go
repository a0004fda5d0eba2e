package application

import (
	"bytes"
	"context"
	"encoding/json"

	"linkwithmentor/service/domain"
)

// Dispatch decodifica o payload JSON da operação op e chama o método
// correspondente. É o ponto de entrada comum aos dois transportes.
//
// Payload malformado ou operação desconhecida são rejeitados antes do pipeline
// (não contam em métricas).
func (o *Orchestrator) Dispatch(ctx context.Context, md domain.Metadata, op domain.Op, raw json.RawMessage) (any, error) {
	switch op {
	case domain.OpPing:
		return dispatch(ctx, md, raw, o.Ping)
	case domain.OpHealth:
		return o.Health(ctx, md)
	case domain.OpReadiness:
		return o.Readiness(ctx, md)
	case domain.OpMetrics:
		return o.MetricsReport(ctx, md)
	case domain.OpCreateUser:
		return dispatch(ctx, md, raw, o.CreateUser)
	case domain.OpGetUser:
		return dispatch(ctx, md, raw, o.GetUser)
	case domain.OpCreateSession:
		return dispatch(ctx, md, raw, o.CreateSession)
	case domain.OpListSessions:
		return dispatch(ctx, md, raw, o.ListSessions)
	case domain.OpSendNotification:
		return dispatch(ctx, md, raw, o.SendNotification)
	case domain.OpListUnreadNotifications:
		return dispatch(ctx, md, raw, o.ListUnreadNotifications)
	case domain.OpMarkRead:
		return dispatch(ctx, md, raw, o.MarkRead)
	case domain.OpRegisterDeviceToken:
		return dispatch(ctx, md, raw, o.RegisterDeviceToken)
	default:
		return nil, domain.NewError(domain.KindNotFound, "unknown operation %q", op)
	}
}

func dispatch[Req, Resp any](ctx context.Context, md domain.Metadata, raw json.RawMessage, fn func(context.Context, domain.Metadata, Req) (Resp, error)) (any, error) {
	var req Req
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, &domain.Error{Kind: domain.KindInvalidArgument, Message: "malformed request payload", Err: err}
		}
	}
	resp, err := fn(ctx, md, req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
