// Package rpc expõe as operações do orquestrador como HTTP/JSON.
//
// Cada operação é uma rota POST /v1/<Op>; o corpo é o request JSON e a resposta
// é o resultado JSON (200) ou {"code","message"} com o status da categoria do erro.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"linkwithmentor/service/domain"
)

const (
	Transport          = "rpc"
	RequestIDHeader    = "X-Request-ID"
	defaultMaxBodySize = 1 << 20
)

// Dispatcher é o que o router precisa do orquestrador.
type Dispatcher interface {
	Dispatch(ctx context.Context, md domain.Metadata, op domain.Op, raw json.RawMessage) (any, error)
}

type Options struct {
	Dispatcher Dispatcher
	Logger     logrus.FieldLogger
	// Middlewares rodam antes das rotas (flood guard, limite de concorrência).
	Middlewares []func(http.Handler) http.Handler
	MaxBodySize int64
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	h := &handler{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range opts.Middlewares {
		r.Use(mw)
	}

	r.Post("/v1/{op}", h.call)
	r.Get("/healthz", h.health)
	r.Get("/readyz", h.ready)
	r.Get("/metrics", h.metrics)
	return r
}

type handler struct {
	opts Options
}

func metadata(w http.ResponseWriter, r *http.Request) domain.Metadata {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	return domain.Metadata{
		Authorization: r.Header.Get("Authorization"),
		Transport:     Transport,
		RequestID:     id,
	}
}

func (h *handler) call(w http.ResponseWriter, r *http.Request) {
	md := metadata(w, r)
	op := domain.Op(chi.URLParam(r, "op"))

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodySize))
	if err != nil {
		h.opts.Logger.WithError(err).WithField("request_id", md.RequestID).Debug("read request body")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, domain.NewError(domain.KindInvalidArgument, "request body too large"))
			return
		}
		writeError(w, domain.NewError(domain.KindInvalidArgument, "unreadable request body"))
		return
	}

	out, err := h.opts.Dispatcher.Dispatch(r.Context(), md, op, raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	out, err := h.opts.Dispatcher.Dispatch(r.Context(), metadata(w, r), domain.OpHealth, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if st, ok := out.(domain.HealthStatus); ok && !st.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, out)
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	out, err := h.opts.Dispatcher.Dispatch(r.Context(), metadata(w, r), domain.OpReadiness, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if rr, ok := out.(domain.ReadinessResponse); ok && !rr.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, out)
}

func (h *handler) metrics(w http.ResponseWriter, r *http.Request) {
	out, err := h.opts.Dispatcher.Dispatch(r.Context(), metadata(w, r), domain.OpMetrics, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// StatusFor mapeia a categoria do erro para o status HTTP.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyExists:
		return http.StatusConflict
	case domain.KindResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	var derr *domain.Error
	if kind == domain.KindResourceExhausted && errors.As(err, &derr) && derr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(derr.RetryAfter)))
	}
	writeJSON(w, StatusFor(kind), ErrorBody{Code: string(kind), Message: domain.PublicMessage(err)})
}

// retryAfterSeconds arredonda para cima; nunca menos de 1s.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
