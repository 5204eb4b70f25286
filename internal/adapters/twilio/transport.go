package twilio

import (
	"context"
	"strings"

	"rent-radar/internal/domain"
)

// SMSTransport доставляет уведомления по SMS.
type SMSTransport struct {
	client *Client
}

// NewSMSTransport создаёт SMS транспорт поверх клиента Twilio.
func NewSMSTransport(client *Client) *SMSTransport {
	return &SMSTransport{client: client}
}

// Configured сообщает, заданы ли реквизиты для SMS.
func (t *SMSTransport) Configured() bool {
	cfg := t.client.cfg
	return cfg.AccountSID != "" && cfg.AuthToken != "" && cfg.FromNumber != ""
}

// Deliver отправляет SMS на номер получателя.
func (t *SMSTransport) Deliver(ctx context.Context, msg domain.OutboundMessage) error {
	return t.client.send(ctx, t.client.cfg.FromNumber, msg.To, msg.Body)
}

// WhatsAppTransport доставляет уведомления в WhatsApp через Twilio.
type WhatsAppTransport struct {
	client *Client
}

// NewWhatsAppTransport создаёт WhatsApp транспорт поверх клиента Twilio.
func NewWhatsAppTransport(client *Client) *WhatsAppTransport {
	return &WhatsAppTransport{client: client}
}

// Configured сообщает, заданы ли реквизиты для WhatsApp.
func (t *WhatsAppTransport) Configured() bool {
	cfg := t.client.cfg
	return cfg.AccountSID != "" && cfg.AuthToken != "" && cfg.WhatsAppFrom != ""
}

// Deliver отправляет сообщение в WhatsApp. Адреса приводятся к виду
// whatsapp:+1555..., как того требует API.
func (t *WhatsAppTransport) Deliver(ctx context.Context, msg domain.OutboundMessage) error {
	return t.client.send(ctx, whatsappAddr(t.client.cfg.WhatsAppFrom), whatsappAddr(msg.To), msg.Body)
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
