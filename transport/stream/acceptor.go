// Package stream é o transporte de baixo nível: frames JSON sobre streams QUIC.
//
// Cada conexão aceita ganha uma goroutine própria, que atende os streams da
// conexão em série. Dentro de um stream, cada frame de request é despachado ao
// orquestrador e a resposta é escrita antes do próximo frame ser lido.
package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"linkwithmentor/middleware/ratelimit"
	rlapp "linkwithmentor/middleware/ratelimit/application"
	rldomain "linkwithmentor/middleware/ratelimit/domain"
	"linkwithmentor/service/domain"
)

const Transport = "stream"

// Códigos de aplicação usados ao fechar conexões.
const (
	CodeNoError   quic.ApplicationErrorCode = 0x0
	CodeThrottled quic.ApplicationErrorCode = 0x1
	CodeSaturated quic.ApplicationErrorCode = 0x2
	CodeProtocol  quic.ApplicationErrorCode = 0x3
	CodeShutdown  quic.ApplicationErrorCode = 0x4
)

const defaultIdle = 30 * time.Second

type Dispatcher interface {
	Dispatch(ctx context.Context, md domain.Metadata, op domain.Op, raw json.RawMessage) (any, error)
}

type Options struct {
	Addrs      []string
	TLSConfig  *tls.Config
	Dispatcher Dispatcher
	Logger     logrus.FieldLogger

	IdleTimeout  time.Duration
	MaxFrameSize uint32

	// Conns limita conexões vivas. Pool nil = sem limite.
	Conns rlapp.ConcurrencyService
	// HostGuard limita conexões novas por host remoto. Limiter nil = sem limite.
	HostGuard rlapp.Service
	// Stats recebe as conexões recusadas (best-effort).
	Stats rldomain.StatsStore
}

type Acceptor struct {
	opts      Options
	log       logrus.FieldLogger
	mu        sync.Mutex
	listeners []*quic.Listener
	conns     sync.WaitGroup
}

func NewAcceptor(opts Options) (*Acceptor, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("stream: dispatcher is required")
	}
	if opts.TLSConfig == nil {
		return nil, errors.New("stream: tls config is required")
	}
	if len(opts.Addrs) == 0 {
		return nil, errors.New("stream: at least one address is required")
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdle
	}
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	tlsConf := opts.TLSConfig.Clone()
	tlsConf.NextProtos = []string{ALPN}
	if tlsConf.MinVersion < tls.VersionTLS13 {
		tlsConf.MinVersion = tls.VersionTLS13
	}
	opts.TLSConfig = tlsConf
	return &Acceptor{opts: opts, log: opts.Logger.WithField("transport", Transport)}, nil
}

// Listen abre um socket UDP por endereço. Se algum falhar, fecha os já abertos.
func (a *Acceptor) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.listeners) > 0 {
		return nil
	}
	qconf := &quic.Config{MaxIdleTimeout: a.opts.IdleTimeout}
	for _, addr := range a.opts.Addrs {
		ln, err := quic.ListenAddr(addr, a.opts.TLSConfig, qconf)
		if err != nil {
			for _, l := range a.listeners {
				_ = l.Close()
			}
			a.listeners = nil
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		a.listeners = append(a.listeners, ln)
	}
	return nil
}

func (a *Acceptor) Addrs() []net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]net.Addr, 0, len(a.listeners))
	for _, ln := range a.listeners {
		out = append(out, ln.Addr())
	}
	return out
}

// Serve roda um loop de accept por listener até ctx encerrar. No retorno todos
// os listeners estão fechados e todas as goroutines de conexão terminaram.
func (a *Acceptor) Serve(ctx context.Context) error {
	if err := a.Listen(); err != nil {
		return err
	}
	a.mu.Lock()
	listeners := append([]*quic.Listener(nil), a.listeners...)
	a.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ln := range listeners {
		ln := ln
		a.log.Infof("listening on %s (QUIC, alpn=%s)", ln.Addr(), ALPN)
		g.Go(func() error { return a.acceptLoop(gctx, ln) })
	}
	g.Go(func() error {
		<-gctx.Done()
		for _, ln := range listeners {
			_ = ln.Close()
		}
		return nil
	})

	err := g.Wait()
	a.conns.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *Acceptor) acceptLoop(ctx context.Context, ln *quic.Listener) error {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("accept on %s: %w", ln.Addr(), err)
		}

		host := ratelimit.HostKey(conn.RemoteAddr().String())
		if dec := a.opts.HostGuard.Decide(rldomain.Key(host)); !dec.Allowed {
			a.reject(ctx, conn, host, CodeThrottled, "conn_throttled")
			continue
		}

		// Sem vaga, o accept espera até AcquireTimeout (backpressure) e então rejeita.
		release, err := a.opts.Conns.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				_ = conn.CloseWithError(CodeShutdown, "server shutting down")
				return nil
			}
			a.reject(ctx, conn, host, CodeSaturated, "conn_saturated")
			continue
		}

		a.conns.Add(1)
		go func() {
			defer a.conns.Done()
			defer release()
			a.handleConn(ctx, conn)
		}()
	}
}

func (a *Acceptor) reject(ctx context.Context, conn quic.Connection, host string, code quic.ApplicationErrorCode, outcome string) {
	a.log.WithFields(logrus.Fields{"remote": host, "outcome": outcome}).Warn("connection rejected")
	_ = conn.CloseWithError(code, outcome)
	if a.opts.Stats == nil {
		return
	}
	if err := a.opts.Stats.Record(ctx, rldomain.StatsEvent{
		Key:       rldomain.Key(host),
		Allowed:   false,
		Op:        "accept",
		Transport: Transport,
		Outcome:   outcome,
		At:        time.Now(),
	}); err != nil {
		a.log.WithError(err).Warn("stats record failed")
	}
}

// handleConn atende os streams da conexão em série. Erros de stream resetado
// pelo peer descartam só o stream; qualquer outro erro de I/O fecha a conexão.
func (a *Acceptor) handleConn(ctx context.Context, conn quic.Connection) {
	log := a.log.WithField("remote", conn.RemoteAddr().String())
	log.Debug("connection accepted")

	// Shutdown derruba também streams bloqueados em leitura.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.CloseWithError(CodeShutdown, "server shutting down")
	})
	defer stop()

	for {
		str, err := conn.AcceptStream(ctx)
		if err != nil {
			log.WithError(err).Debug("connection closed")
			return
		}
		if err := a.serveStream(conn.Context(), str); err != nil {
			// Reset de um stream pelo peer encerra só aquele stream.
			var serr *quic.StreamError
			if errors.As(err, &serr) {
				log.WithError(err).Debug("stream reset by peer")
				str.CancelRead(quic.StreamErrorCode(CodeProtocol))
				continue
			}
			log.WithError(err).Info("stream failed, closing connection")
			_ = conn.CloseWithError(CodeProtocol, "stream error")
			return
		}
	}
}

// serveStream processa frames até o peer fechar o lado de escrita.
func (a *Acceptor) serveStream(ctx context.Context, str quic.Stream) error {
	defer str.Close()

	for {
		body, err := ReadFrame(str, a.opts.MaxFrameSize)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var resp Response
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			// O frame foi consumido inteiro, o stream continua sincronizado.
			resp = errorResponse("", domain.NewError(domain.KindInvalidArgument, "malformed request envelope"))
		} else {
			resp = a.handle(ctx, req)
		}

		raw, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		if err := WriteFrame(str, raw); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

func (a *Acceptor) handle(ctx context.Context, req Request) Response {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	md := domain.Metadata{
		Authorization: req.Authorization,
		Transport:     Transport,
		RequestID:     req.ID,
	}
	out, err := a.opts.Dispatcher.Dispatch(ctx, md, req.Op, req.Payload)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		a.log.WithError(err).WithField("request_id", req.ID).Error("encode result")
		return errorResponse(req.ID, &domain.Error{Kind: domain.KindInternal, Message: "encode result", Err: err})
	}
	return Response{ID: req.ID, OK: true, Payload: raw}
}
