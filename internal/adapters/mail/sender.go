package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"rent-radar/internal/domain"
	"rent-radar/internal/infra/metrics"
)

// Config — параметры SMTP сервера исходящей почты.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Transport доставляет уведомления по электронной почте.
type Transport struct {
	cfg Config
}

// NewTransport создаёт почтовый транспорт.
func NewTransport(cfg Config) *Transport {
	return &Transport{cfg: cfg}
}

// Configured сообщает, заданы ли параметры SMTP.
func (t *Transport) Configured() bool {
	return t.cfg.Host != "" && t.cfg.Port > 0 && t.cfg.From != ""
}

// Deliver отправляет письмо получателю. Контекст здесь не прерывает
// уже начатую SMTP сессию, соединение ограничено таймаутами net/smtp.
func (t *Transport) Deliver(_ context.Context, msg domain.OutboundMessage) error {
	start := time.Now()
	err := t.send(msg)
	metrics.ObserveNetworkRequest("smtp", "send_mail", t.cfg.Host, start, err)
	return err
}

func (t *Transport) send(msg domain.OutboundMessage) error {
	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)

	client, err := t.dial(addr)
	if err != nil {
		return fmt.Errorf("соединение с %s: %w", addr, err)
	}
	defer client.Close()

	if t.cfg.Username != "" && t.cfg.Password != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("авторизация: %w", err)
		}
	}
	if err := client.Mail(t.cfg.From); err != nil {
		return fmt.Errorf("команда MAIL: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("команда RCPT: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("команда DATA: %w", err)
	}
	if _, err := w.Write(buildMessage(t.cfg.From, msg)); err != nil {
		return fmt.Errorf("запись письма: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("завершение письма: %w", err)
	}
	return client.Quit()
}

// dial устанавливает соединение: порт 465 означает неявный TLS,
// иначе обычное соединение с обязательным STARTTLS.
func (t *Transport) dial(addr string) (*smtp.Client, error) {
	if t.cfg.Port == 465 {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: t.cfg.Host})
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, t.cfg.Host)
	}
	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, err
	}
	if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func buildMessage(from string, msg domain.OutboundMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
