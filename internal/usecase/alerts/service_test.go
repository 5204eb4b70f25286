package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"rent-radar/internal/domain"
)

type stubSubscriberRepo struct {
	domain.SubscriberRepo
	subs []domain.Subscriber
}

func (s *stubSubscriberRepo) ListSubscribers() ([]domain.Subscriber, error) {
	return s.subs, nil
}

type stubListingRepo struct {
	domain.ListingRepo
	marked []string
}

func (s *stubListingRepo) MarkNotified(postIDs []string) error {
	s.marked = append(s.marked, postIDs...)
	return nil
}

type stubTransport struct {
	configured bool
	err        error
	sent       []domain.OutboundMessage
}

func (s *stubTransport) Configured() bool { return s.configured }

func (s *stubTransport) Deliver(_ context.Context, msg domain.OutboundMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newTestService(subs []domain.Subscriber, transports map[domain.Channel]domain.Transport) (*Service, *stubListingRepo) {
	listings := &stubListingRepo{}
	svc := NewService(&stubSubscriberRepo{subs: subs}, listings, transports, zerolog.Nop())
	return svc, listings
}

func TestSendAlertsMarksNotified(t *testing.T) {
	sms := &stubTransport{configured: true}
	svc, listings := newTestService(
		[]domain.Subscriber{{Phone: "+15555550123", Channels: []domain.Channel{domain.ChannelSMS}}},
		map[domain.Channel]domain.Transport{domain.ChannelSMS: sms},
	)

	sent, err := svc.SendAlerts(context.Background(), []domain.Listing{
		{PostID: "abc123", Title: "Charming Flat", URL: "https://example.com/listing/abc123", Price: "$2,400", Neighborhood: "SOMA"},
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if sent != 1 {
		t.Fatalf("ожидали 1 отправленное объявление, получили %d", sent)
	}
	if len(sms.sent) != 1 {
		t.Fatalf("ожидали 1 SMS, получили %d", len(sms.sent))
	}
	msg := sms.sent[0]
	if msg.To != "+15555550123" {
		t.Fatalf("адрес: получили %q", msg.To)
	}
	if msg.Body != "New Listing: $2,400 - Charming Flat in SOMA. Link: https://example.com/listing/abc123" {
		t.Fatalf("текст: получили %q", msg.Body)
	}
	if len(listings.marked) != 1 || listings.marked[0] != "abc123" {
		t.Fatalf("отметка отправки: получили %v", listings.marked)
	}
}

func TestSendAlertsZeroDeliveriesLeavesPending(t *testing.T) {
	sms := &stubTransport{configured: true, err: errors.New("шлюз недоступен")}
	svc, listings := newTestService(
		[]domain.Subscriber{{Phone: "+15555550123", Channels: []domain.Channel{domain.ChannelSMS}}},
		map[domain.Channel]domain.Transport{domain.ChannelSMS: sms},
	)

	sent, err := svc.SendAlerts(context.Background(), []domain.Listing{{PostID: "p1", Title: "x", URL: "u"}})
	if err != nil {
		t.Fatalf("ошибка доставки не должна всплывать: %v", err)
	}
	if sent != 0 {
		t.Fatalf("ожидали 0 отправленных, получили %d", sent)
	}
	if len(listings.marked) != 0 {
		t.Fatalf("недоставленное объявление помечено отправленным: %v", listings.marked)
	}
}

func TestSendAlertsPartialFailure(t *testing.T) {
	sms := &stubTransport{configured: true, err: errors.New("шлюз недоступен")}
	email := &stubTransport{configured: true}
	svc, listings := newTestService(
		[]domain.Subscriber{{
			Phone:    "+15555550123",
			Email:    "user@example.com",
			Channels: []domain.Channel{domain.ChannelSMS, domain.ChannelEmail},
		}},
		map[domain.Channel]domain.Transport{domain.ChannelSMS: sms, domain.ChannelEmail: email},
	)

	sent, err := svc.SendAlerts(context.Background(), []domain.Listing{{PostID: "p1", Title: "Flat", URL: "u"}})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if sent != 1 {
		t.Fatalf("письмо дошло, объявление должно считаться отправленным, получили %d", sent)
	}
	if len(email.sent) != 1 || email.sent[0].To != "user@example.com" {
		t.Fatalf("письмо: получили %v", email.sent)
	}
	if email.sent[0].Subject != "New Rental Alert: Flat" {
		t.Fatalf("тема письма: получили %q", email.sent[0].Subject)
	}
	if len(listings.marked) != 1 {
		t.Fatalf("отметка отправки: получили %v", listings.marked)
	}
}

func TestSendAlertsWhatsAppFallsBackToPhone(t *testing.T) {
	wa := &stubTransport{configured: true}
	svc, _ := newTestService(
		[]domain.Subscriber{{Phone: "+15555550123", Channels: []domain.Channel{domain.ChannelWhatsApp}}},
		map[domain.Channel]domain.Transport{domain.ChannelWhatsApp: wa},
	)

	if _, err := svc.SendAlerts(context.Background(), []domain.Listing{{PostID: "p1", Title: "x", URL: "u"}}); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(wa.sent) != 1 || wa.sent[0].To != "+15555550123" {
		t.Fatalf("ожидали доставку на основной телефон, получили %v", wa.sent)
	}
}

func TestSendAlertsSkipsUnconfiguredChannel(t *testing.T) {
	sms := &stubTransport{configured: false}
	svc, listings := newTestService(
		[]domain.Subscriber{{Phone: "+15555550123", Channels: []domain.Channel{domain.ChannelSMS}}},
		map[domain.Channel]domain.Transport{domain.ChannelSMS: sms},
	)

	sent, err := svc.SendAlerts(context.Background(), []domain.Listing{{PostID: "p1", Title: "x", URL: "u"}})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if sent != 0 || len(sms.sent) != 0 || len(listings.marked) != 0 {
		t.Fatalf("ненастроенный канал не должен использоваться: sent=%d sms=%d marked=%v", sent, len(sms.sent), listings.marked)
	}
}

func TestSendAlertsEmptyBatch(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	sent, err := svc.SendAlerts(context.Background(), nil)
	if err != nil || sent != 0 {
		t.Fatalf("пустая пачка: sent=%d err=%v", sent, err)
	}
}
