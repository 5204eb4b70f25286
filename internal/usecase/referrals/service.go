package referrals

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"rent-radar/internal/domain"
)

// Service ведёт реферальный учёт: фиксация приглашений и начисление
// наград за оплаченные подписки приглашённых.
type Service struct {
	referrals   domain.ReferralRepo
	subscribers domain.SubscriberRepo
	log         zerolog.Logger
}

// NewService создаёт реферальный сервис.
func NewService(referrals domain.ReferralRepo, subscribers domain.SubscriberRepo, logger zerolog.Logger) *Service {
	return &Service{referrals: referrals, subscribers: subscribers, log: logger}
}

// Record фиксирует приглашение по коду. Пустой код молча игнорируется,
// повтор той же пары код-почта не создаёт дубликата.
func (s *Service) Record(ctx context.Context, code, refereeEmail, refereePhone string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || refereeEmail == "" {
		return nil
	}
	recorded, err := s.referrals.RecordReferral(code, refereeEmail, refereePhone)
	if err != nil {
		return err
	}
	if recorded {
		s.log.Info().Str("code", code).Str("referee", refereeEmail).Msg("referrals: приглашение зафиксировано")
	}
	return nil
}

// RewardQualified начисляет награду за приглашённого, оплатившего
// подписку. Награда за каждое приглашение выдаётся ровно один раз,
// повторные вызовы ничего не меняют.
func (s *Service) RewardQualified(ctx context.Context, refereeEmail string) error {
	ref, ok, err := s.referrals.PendingReferralByReferee(refereeEmail)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	granted, err := s.referrals.GrantReward(ref.ID)
	if err != nil {
		return err
	}
	if granted {
		s.log.Info().
			Str("code", ref.ReferrerCode).
			Str("referee", refereeEmail).
			Msg("referrals: награда начислена")
	}
	return nil
}

// EnsureCode возвращает реферальный код подписчика, создавая его при
// первом обращении.
func (s *Service) EnsureCode(ctx context.Context, subscriberID int64) (string, error) {
	return s.subscribers.EnsureReferralCode(subscriberID)
}
