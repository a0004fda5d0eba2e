package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"linkwithmentor/service/domain"
)

// Client fala o protocolo de frames sobre um único stream, uma chamada por vez.
type Client struct {
	conn quic.Connection

	mu  sync.Mutex
	str quic.Stream

	Authorization string
	MaxFrameSize  uint32
}

func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (*Client, error) {
	conf := &tls.Config{}
	if tlsConf != nil {
		conf = tlsConf.Clone()
	}
	conf.NextProtos = []string{ALPN}

	conn, err := quic.DialAddr(ctx, addr, conf, &quic.Config{KeepAlivePeriod: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	str, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(CodeNoError, "")
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return &Client{conn: conn, str: str}, nil
}

// Call envia um request e decodifica o payload da resposta em out (se não nil).
// Falhas do servidor voltam como *domain.Error.
func (c *Client) Call(ctx context.Context, op domain.Op, payload, out any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		raw = b
	}
	resp, err := c.RoundTrip(ctx, Request{
		ID:            uuid.NewString(),
		Op:            op,
		Authorization: c.Authorization,
		Payload:       raw,
	})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if out != nil && len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}

// RoundTrip escreve um frame de request e lê o frame de resposta.
func (c *Client) RoundTrip(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.str.SetDeadline(deadline)
		defer c.str.SetDeadline(time.Time{})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	if err := WriteFrame(c.str, body); err != nil {
		return Response{}, fmt.Errorf("write request: %w", err)
	}
	rb, err := ReadFrame(c.str, c.MaxFrameSize)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(rb, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// WriteRaw escreve um frame arbitrário e devolve a resposta (útil para diagnóstico).
func (c *Client) WriteRaw(ctx context.Context, body []byte) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.str.SetDeadline(deadline)
		defer c.str.SetDeadline(time.Time{})
	}
	if err := WriteFrame(c.str, body); err != nil {
		return Response{}, err
	}
	rb, err := ReadFrame(c.str, c.MaxFrameSize)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	err = json.Unmarshal(rb, &resp)
	return resp, err
}

// Reopen abandona o stream atual e abre outro na mesma conexão.
func (c *Client) Reopen(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.str.CancelRead(quic.StreamErrorCode(CodeNoError))
	c.str.CancelWrite(quic.StreamErrorCode(CodeNoError))
	str, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	c.str = str
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.str.Close()
	return c.conn.CloseWithError(CodeNoError, "")
}
