// Package gateway sends rendered messages through the configured email and
// SMS providers. WhatsApp is delivered over the SMS provider until a native
// integration exists.
package gateway

import (
	"context"
	"fmt"
	"log"

	"propflow/models"
)

// Message is one rendered send request
type Message struct {
	Channel   string
	To        string // email address or phone number, per channel
	ToName    string
	Subject   string
	Body      string
	MessageID string // pre-generated id used for tracking links
}

// SendResult reports provider metadata for a completed send
type SendResult struct {
	MessageID string
	Provider  string
	Cost      float64
}

// Sender submits a single message to a provider
type Sender interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
}

// Dispatcher routes messages to the per-channel sender
type Dispatcher struct {
	email  Sender
	sms    Sender
	logger *log.Logger
}

func NewDispatcher(email, sms Sender, logger *log.Logger) *Dispatcher {
	return &Dispatcher{email: email, sms: sms, logger: logger}
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) (*SendResult, error) {
	switch msg.Channel {
	case models.ChannelEmail:
		return d.email.Send(ctx, msg)
	case models.ChannelSMS:
		return d.sms.Send(ctx, msg)
	case models.ChannelWhatsApp:
		// WhatsApp falls back to SMS delivery
		d.logger.Printf("whatsapp channel not natively supported, sending via SMS to %s", msg.To)
		fallback := msg
		fallback.Channel = models.ChannelSMS
		return d.sms.Send(ctx, fallback)
	default:
		return nil, fmt.Errorf("unknown channel %q", msg.Channel)
	}
}
