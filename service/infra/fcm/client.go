// Package fcm entrega notificações push pela API HTTP v1 do Firebase Cloud Messaging.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"linkwithmentor/service/domain"
)

const (
	DefaultEndpoint = "https://fcm.googleapis.com"
	messagingScope  = "https://www.googleapis.com/auth/firebase.messaging"
)

// ErrUnregistered indica que o gateway não reconhece mais o token do device.
var ErrUnregistered = errors.New("fcm: device token unregistered")

type Client struct {
	http      *http.Client
	endpoint  string
	projectID string
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New usa um http.Client já autenticado (ex: oauth2.NewClient).
func New(projectID string, hc *http.Client, opts ...Option) (*Client, error) {
	if projectID == "" {
		return nil, errors.New("fcm: project id is required")
	}
	var cp http.Client
	if hc != nil {
		cp = *hc
	}
	c := &Client{http: &cp, endpoint: DefaultEndpoint, projectID: projectID}
	if c.http.Timeout == 0 {
		c.http.Timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromCredentials monta o client a partir do JSON de service account.
func NewFromCredentials(ctx context.Context, credentialsJSON []byte, opts ...Option) (*Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, messagingScope)
	if err != nil {
		return nil, fmt.Errorf("fcm: parse credentials: %w", err)
	}
	return New(creds.ProjectID, oauth2.NewClient(ctx, creds.TokenSource), opts...)
}

func NewFromFile(ctx context.Context, path string, opts ...Option) (*Client, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fcm: read credentials: %w", err)
	}
	return NewFromCredentials(ctx, raw, opts...)
}

func (c *Client) ProjectID() string { return c.projectID }

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *androidConfig    `json:"android,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
}

type androidConfig struct {
	Priority string `json:"priority"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func buildMessage(token, title, body string, p domain.Payload) message {
	m := message{
		Token:        token,
		Notification: notification{Title: title, Body: body},
	}
	if data := p.Data(); len(data) > 0 {
		m.Data = data
	}
	switch p.Kind {
	case domain.PayloadImage:
		m.Notification.Image = p.ImageURL
	case domain.PayloadCall:
		m.Android = &androidConfig{Priority: "high"}
	}
	return m
}

// Send implementa domain.Notifier. Uma tentativa só; quem chama decide o que fazer com o erro.
func (c *Client) Send(ctx context.Context, token, title, body string, p domain.Payload) error {
	raw, err := json.Marshal(sendRequest{Message: buildMessage(token, title, body, p)})
	if err != nil {
		return fmt.Errorf("fcm: encode message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.endpoint, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("fcm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fcm: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var er errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er)
	if resp.StatusCode == http.StatusNotFound || er.Error.Status == "NOT_FOUND" || strings.Contains(er.Error.Message, "UNREGISTERED") {
		return fmt.Errorf("%w: %s", ErrUnregistered, er.Error.Message)
	}
	return fmt.Errorf("fcm: send: status %d: %s", resp.StatusCode, er.Error.Message)
}
