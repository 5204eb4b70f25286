package subscribers

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rent-radar/internal/domain"
	"rent-radar/internal/usecase/referrals"
)

// Service применяет события подписки: создание и обновление
// подписчиков, привязка приглашений, подтверждение почты.
type Service struct {
	subscribers domain.SubscriberRepo
	referrals   *referrals.Service
	log         zerolog.Logger
}

// NewService создаёт сервис подписчиков.
func NewService(repo domain.SubscriberRepo, refs *referrals.Service, logger zerolog.Logger) *Service {
	return &Service{subscribers: repo, referrals: refs, log: logger}
}

// Apply применяет событие подписки: создаёт или обновляет подписчика и
// ведёт реферальный учёт. true — подписчик создан впервые. Ошибки
// реферального учёта логируются и не срывают саму подписку.
func (s *Service) Apply(ctx context.Context, ev domain.SubscriptionEvent) (bool, error) {
	if ev.Phone == "" && ev.Email == "" && ev.WhatsApp == "" {
		s.log.Error().Msg("subscribers: событие без единого контакта отвергнуто")
		return false, domain.ErrNoContact
	}

	created, err := s.subscribers.UpsertSubscriber(domain.UpsertSubscriberParams{
		Tier:       ev.Tier,
		Lifetime:   ev.Lifetime,
		Channels:   domain.NormalizeChannels(ev.Channels),
		Phone:      ev.Phone,
		Email:      ev.Email,
		WhatsApp:   ev.WhatsApp,
		ReferredBy: ev.ReferralCode,
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info().Str("tier", string(ev.Tier)).Msg("subscribers: новый подписчик")
	}

	if ev.ReferralCode != "" && ev.Email != "" {
		if err := s.referrals.Record(ctx, ev.ReferralCode, ev.Email, ev.Phone); err != nil {
			s.log.Error().Err(err).Str("email", ev.Email).Msg("subscribers: приглашение не зафиксировано")
		}
	}
	if ev.Tier.Paid() && ev.Email != "" {
		if err := s.referrals.RewardQualified(ctx, ev.Email); err != nil {
			s.log.Error().Err(err).Str("email", ev.Email).Msg("subscribers: награда не начислена")
		}
	}
	return created, nil
}

// Get возвращает подписчика по адресу почты.
func (s *Service) Get(email string) (domain.Subscriber, error) {
	return s.subscribers.GetSubscriberByEmail(email)
}

// IssueVerification выдаёт подписчику токен подтверждения почты.
func (s *Service) IssueVerification(email string) (string, error) {
	token := uuid.NewString()
	ok, err := s.subscribers.SetVerificationToken(email, token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrSubscriberNotFound
	}
	return token, nil
}

// ConfirmVerification подтверждает почту по токену. Токен одноразовый.
func (s *Service) ConfirmVerification(token string) (bool, error) {
	ok, err := s.subscribers.VerifyEmail(token)
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info().Msg("subscribers: почта подтверждена")
	}
	return ok, nil
}
