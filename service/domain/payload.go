package domain

import (
	"errors"
	"strconv"
)

type PayloadKind string

const (
	PayloadPlain PayloadKind = "plain"
	PayloadLink  PayloadKind = "link"
	PayloadImage PayloadKind = "image"
	PayloadChat  PayloadKind = "chat"
	PayloadCall  PayloadKind = "call"
)

// Payload é o conteúdo tipado opcional de uma notificação.
// Só os campos do Kind escolhido são considerados.
type Payload struct {
	Kind PayloadKind `json:"type,omitempty"`

	URL      string `json:"url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`

	SenderID string `json:"sender_id,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`

	CallerID string `json:"caller_id,omitempty"`
	CallID   string `json:"call_id,omitempty"`
	IsVideo  bool   `json:"is_video,omitempty"`
}

func (p Payload) kind() PayloadKind {
	if p.Kind == "" {
		return PayloadPlain
	}
	return p.Kind
}

// Type é o valor gravado em Notification.Type.
func (p Payload) Type() string { return string(p.kind()) }

func (p Payload) Validate() error {
	switch p.kind() {
	case PayloadPlain:
		return nil
	case PayloadLink:
		if p.URL == "" {
			return errors.New("link payload requires url")
		}
	case PayloadImage:
		if p.ImageURL == "" {
			return errors.New("image payload requires image_url")
		}
	case PayloadChat:
		if p.SenderID == "" || p.ChatID == "" {
			return errors.New("chat payload requires sender_id and chat_id")
		}
	case PayloadCall:
		if p.CallerID == "" || p.CallID == "" {
			return errors.New("call payload requires caller_id and call_id")
		}
	default:
		return errors.New("unknown payload type " + strconv.Quote(string(p.Kind)))
	}
	return nil
}

// Data achata o payload num mapa de strings (o gateway de push só aceita
// valores string). Payload plain resulta em mapa vazio.
func (p Payload) Data() map[string]string {
	data := map[string]string{}
	switch p.kind() {
	case PayloadLink:
		data["type"] = "link"
		data["url"] = p.URL
	case PayloadImage:
		data["type"] = "image"
		data["image_url"] = p.ImageURL
	case PayloadChat:
		data["type"] = "chat"
		data["sender_id"] = p.SenderID
		data["chat_id"] = p.ChatID
	case PayloadCall:
		data["type"] = "call"
		data["caller_id"] = p.CallerID
		data["call_id"] = p.CallID
		data["is_video"] = strconv.FormatBool(p.IsVideo)
	}
	return data
}
