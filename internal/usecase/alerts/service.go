package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rent-radar/internal/domain"
	"rent-radar/internal/infra/metrics"
)

// Service рассылает уведомления о новых объявлениях по всем каналам
// подписчиков. Объявление помечается отправленным только после хотя бы
// одной успешной доставки.
type Service struct {
	subscribers domain.SubscriberRepo
	listings    domain.ListingRepo
	transports  map[domain.Channel]domain.Transport
	log         zerolog.Logger
	warned      map[domain.Channel]bool
}

// NewService создаёт сервис рассылки.
func NewService(
	subscribers domain.SubscriberRepo,
	listings domain.ListingRepo,
	transports map[domain.Channel]domain.Transport,
	logger zerolog.Logger,
) *Service {
	return &Service{
		subscribers: subscribers,
		listings:    listings,
		transports:  transports,
		log:         logger,
		warned:      make(map[domain.Channel]bool),
	}
}

// SendAlerts рассылает пачку объявлений и возвращает число объявлений,
// доставленных хотя бы одному получателю. Ошибки доставки логируются и
// не прерывают пачку, недоставленные объявления остаются в очереди.
func (s *Service) SendAlerts(ctx context.Context, listings []domain.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() {
		metrics.AlertBatchSeconds.Observe(time.Since(start).Seconds())
	}()

	subs, err := s.subscribers.ListSubscribers()
	if err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		s.log.Info().Int("listings", len(listings)).Msg("alerts: подписчиков нет, рассылка пропущена")
		return 0, nil
	}
	s.warnMissingTransports(subs)

	var notified []string
	for _, l := range listings {
		if s.sendListing(ctx, l, subs) {
			notified = append(notified, l.PostID)
		} else {
			s.log.Error().Str("post_id", l.PostID).Msg("alerts: ни одной успешной доставки, объявление остаётся в очереди")
		}
	}
	if len(notified) > 0 {
		if err := s.listings.MarkNotified(notified); err != nil {
			return len(notified), err
		}
	}
	return len(notified), nil
}

func (s *Service) sendListing(ctx context.Context, l domain.Listing, subs []domain.Subscriber) bool {
	body := FormatMessage(l)
	subject := EmailSubject(l)

	delivered := false
	for _, sub := range subs {
		if s.sendToSubscriber(ctx, l, sub, subject, body) {
			delivered = true
		}
	}
	return delivered
}

func (s *Service) sendToSubscriber(ctx context.Context, l domain.Listing, sub domain.Subscriber, subject, body string) bool {
	delivered := false
	for _, ch := range sub.Channels {
		transport, ok := s.transports[ch]
		if !ok || !transport.Configured() {
			continue
		}
		to := s.destination(ch, sub)
		if to == "" {
			continue
		}

		msg := domain.OutboundMessage{To: to, Body: body}
		if ch == domain.ChannelEmail {
			msg.Subject = subject
		}
		err := transport.Deliver(ctx, msg)
		metrics.ObserveAlertDelivery(string(ch), err)
		if err != nil {
			s.log.Error().
				Str("post_id", l.PostID).
				Str("channel", string(ch)).
				Str("to", to).
				Err(err).
				Msg("alerts: доставка не удалась")
			continue
		}
		delivered = true
	}
	return delivered
}

// destination выбирает адрес получателя для канала. Для WhatsApp при
// отсутствии отдельного номера используется основной телефон.
func (s *Service) destination(ch domain.Channel, sub domain.Subscriber) string {
	switch ch {
	case domain.ChannelSMS:
		return sub.Phone
	case domain.ChannelWhatsApp:
		if sub.WhatsApp != "" {
			return sub.WhatsApp
		}
		return sub.Phone
	case domain.ChannelEmail:
		return sub.Email
	}
	return ""
}

// warnMissingTransports один раз предупреждает о каналах, которые нужны
// подписчикам, но не настроены.
func (s *Service) warnMissingTransports(subs []domain.Subscriber) {
	needed := make(map[domain.Channel]bool)
	for _, sub := range subs {
		for _, ch := range sub.Channels {
			needed[ch] = true
		}
	}
	for ch := range needed {
		if s.warned[ch] {
			continue
		}
		transport, ok := s.transports[ch]
		if ok && transport.Configured() {
			continue
		}
		s.warned[ch] = true
		s.log.Warn().Str("channel", string(ch)).Msg("alerts: канал запрошен подписчиками, но не настроен")
	}
}
