package repo

import (
	crand "crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"rent-radar/internal/domain"
	"rent-radar/internal/infra/metrics"
)

const (
	referralAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLength = 8
	referralRetryMax   = 5
)

func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	if _, err := crand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(referralCodeLength)
	for _, raw := range buf {
		idx := int(raw) % len(referralAlphabet)
		b.WriteByte(referralAlphabet[idx])
	}
	return b.String(), nil
}

const subscriberColumns = `id, tier, lifetime, channel_preferences,
COALESCE(phone,''), COALESCE(email,''), COALESCE(whatsapp,''), email_verified,
COALESCE(referral_code,''), COALESCE(referred_by,''),
successful_referral_count, subscription_credits, whatsapp_unlocked, created_at, updated_at`

func scanSubscriber(row pgx.Row) (domain.Subscriber, error) {
	var (
		s        domain.Subscriber
		tier     string
		channels string
	)
	if err := row.Scan(&s.ID, &tier, &s.Lifetime, &channels, &s.Phone, &s.Email, &s.WhatsApp,
		&s.EmailVerified, &s.ReferralCode, &s.ReferredBy,
		&s.SuccessfulReferrals, &s.Credits, &s.WhatsAppUnlocked, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.Subscriber{}, err
	}
	s.Tier = domain.ParseTier(tier)
	s.Channels = domain.ParseChannels(channels)
	return s, nil
}

// UpsertSubscriber создаёт или обновляет подписчика. Ключ конфликта
// выбирается в порядке phone > email > whatsapp; набор каналов и тариф
// перезаписываются, остальные контакты дополняются, но не затираются.
func (p *Postgres) UpsertSubscriber(params domain.UpsertSubscriberParams) (bool, error) {
	phone := strings.TrimSpace(params.Phone)
	email := strings.ToLower(strings.TrimSpace(params.Email))
	whatsapp := strings.TrimSpace(params.WhatsApp)

	var conflictField string
	switch {
	case phone != "":
		conflictField = "phone"
	case email != "":
		conflictField = "email"
	case whatsapp != "":
		conflictField = "whatsapp"
	default:
		return false, domain.ErrNoContact
	}

	channels := domain.JoinChannels(domain.NormalizeChannels(params.Channels))
	tier := string(domain.ParseTier(string(params.Tier)))
	referredBy := strings.ToUpper(strings.TrimSpace(params.ReferredBy))

	ctx, cancel := p.connCtx()
	defer cancel()

	query := fmt.Sprintf(`
INSERT INTO subscribers (phone, email, whatsapp, channel_preferences, tier, lifetime, referred_by)
VALUES (NULLIF($1,''), NULLIF($2,''), NULLIF($3,''), $4, $5, $6, NULLIF($7,''))
ON CONFLICT (%s) WHERE %s IS NOT NULL DO UPDATE SET
    phone = COALESCE(EXCLUDED.phone, subscribers.phone),
    email = COALESCE(EXCLUDED.email, subscribers.email),
    whatsapp = COALESCE(EXCLUDED.whatsapp, subscribers.whatsapp),
    channel_preferences = EXCLUDED.channel_preferences,
    tier = EXCLUDED.tier,
    lifetime = subscribers.lifetime OR EXCLUDED.lifetime,
    referred_by = COALESCE(subscribers.referred_by, EXCLUDED.referred_by),
    updated_at = now()
RETURNING (xmax = 0)
`, conflictField, conflictField)

	var created bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, query, phone, email, whatsapp, channels, tier, params.Lifetime, referredBy).Scan(&created)
	metrics.ObserveNetworkRequest("postgres", "subscribers_upsert", "subscribers", start, err)
	if err != nil {
		return false, err
	}
	return created, nil
}

// ListSubscribers возвращает всех подписчиков с их предпочтениями.
func (p *Postgres) ListSubscribers() ([]domain.Subscriber, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM subscribers ORDER BY id ASC`, subscriberColumns))
	metrics.ObserveNetworkRequest("postgres", "subscribers_list", "subscribers", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subscribers []domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, rows.Err()
}

// CountSubscribers считает подписчиков.
func (p *Postgres) CountSubscribers() (int, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "subscribers_count", "subscribers", start, err)
	return count, err
}

// GetSubscriberByEmail возвращает подписчика по почте.
func (p *Postgres) GetSubscriberByEmail(email string) (domain.Subscriber, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM subscribers WHERE email = LOWER($1)`, subscriberColumns), strings.TrimSpace(email))
	s, err := scanSubscriber(row)
	metrics.ObserveNetworkRequest("postgres", "subscribers_get_by_email", "subscribers", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subscriber{}, domain.ErrSubscriberNotFound
	}
	return s, err
}

// EnsureReferralCode возвращает реферальный код подписчика, генерируя его
// при отсутствии. При исчерпании попыток из-за коллизий возвращает ошибку.
func (p *Postgres) EnsureReferralCode(subscriberID int64) (string, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var existing sql.NullString
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT referral_code FROM subscribers WHERE id = $1`, subscriberID).Scan(&existing)
	metrics.ObserveNetworkRequest("postgres", "subscribers_get_referral_code", "subscribers", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrSubscriberNotFound
	}
	if err != nil {
		return "", err
	}
	if existing.Valid && existing.String != "" {
		return existing.String, nil
	}

	for attempt := 0; attempt < referralRetryMax; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return "", err
		}
		start := time.Now()
		tag, err := p.pool.Exec(ctx, `
UPDATE subscribers SET referral_code = $2, updated_at = now()
WHERE id = $1 AND referral_code IS NULL
`, subscriberID, code)
		metrics.ObserveNetworkRequest("postgres", "subscribers_set_referral_code", "subscribers", start, err)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				continue
			}
			return "", err
		}
		if tag.RowsAffected() == 0 {
			// код успел проставить параллельный вызов
			var current sql.NullString
			if err := p.pool.QueryRow(ctx, `SELECT referral_code FROM subscribers WHERE id = $1`, subscriberID).Scan(&current); err != nil {
				return "", err
			}
			return current.String, nil
		}
		return code, nil
	}
	return "", fmt.Errorf("не удалось сгенерировать уникальный реферальный код")
}

// SetVerificationToken выдаёт подписчику токен подтверждения почты.
func (p *Postgres) SetVerificationToken(email, token string) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE subscribers SET verification_token = $2, email_verified = FALSE, updated_at = now()
WHERE email = LOWER($1)
`, strings.TrimSpace(email), token)
	metrics.ObserveNetworkRequest("postgres", "subscribers_set_verification_token", "subscribers", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// VerifyEmail подтверждает почту по одноразовому токену.
func (p *Postgres) VerifyEmail(token string) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE subscribers SET email_verified = TRUE, verification_token = NULL, updated_at = now()
WHERE verification_token = $1 AND NOT email_verified
`, token)
	metrics.ObserveNetworkRequest("postgres", "subscribers_verify_email", "subscribers", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
