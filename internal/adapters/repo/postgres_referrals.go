package repo

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"rent-radar/internal/domain"
	"rent-radar/internal/infra/metrics"
)

// RecordReferral сохраняет связь «пригласивший — приглашённый».
// Повторная пара (referrer_code, referee_email) молча игнорируется.
func (p *Postgres) RecordReferral(referrerCode, refereeEmail, refereePhone string) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO referrals (referrer_code, referee_email, referee_phone)
VALUES (UPPER($1), LOWER($2), NULLIF($3,''))
ON CONFLICT (referrer_code, referee_email) DO NOTHING
`, strings.TrimSpace(referrerCode), strings.TrimSpace(refereeEmail), strings.TrimSpace(refereePhone))
	metrics.ObserveNetworkRequest("postgres", "referrals_record", "referrals", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// PendingReferralByReferee возвращает самую раннюю ненаграждённую связь
// для указанной почты приглашённого.
func (p *Postgres) PendingReferralByReferee(refereeEmail string) (domain.Referral, bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		r        domain.Referral
		phone    sql.NullString
		rewarded sql.NullTime
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, referrer_code, referee_email, referee_phone, reward_granted, created_at, rewarded_at
FROM referrals
WHERE referee_email = LOWER($1) AND NOT reward_granted
ORDER BY created_at ASC
LIMIT 1
`, strings.TrimSpace(refereeEmail)).Scan(&r.ID, &r.ReferrerCode, &r.RefereeEmail, &phone, &r.RewardGranted, &r.CreatedAt, &rewarded)
	metrics.ObserveNetworkRequest("postgres", "referrals_pending_by_referee", "referrals", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Referral{}, false, nil
	}
	if err != nil {
		return domain.Referral{}, false, err
	}
	if phone.Valid {
		r.RefereePhone = phone.String
	}
	if rewarded.Valid {
		ts := rewarded.Time
		r.RewardedAt = &ts
	}
	return r, true, nil
}

// GrantReward начисляет реферальную награду ровно один раз.
// Флаг reward_granted, кредиты обеих сторон, счётчик успешных рефералов и
// разблокировка WhatsApp меняются в одной транзакции: параллельный повтор
// по тому же id упирается в условие reward_granted = FALSE и становится no-op.
func (p *Postgres) GrantReward(referralID int64) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "referrals", start, err)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var (
		referrerCode string
		refereeEmail string
	)
	start = time.Now()
	err = tx.QueryRow(ctx, `
UPDATE referrals SET reward_granted = TRUE, rewarded_at = now()
WHERE id = $1 AND NOT reward_granted
RETURNING referrer_code, referee_email
`, referralID).Scan(&referrerCode, &refereeEmail)
	metrics.ObserveNetworkRequest("postgres", "referrals_grant", "referrals", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE subscribers SET
    subscription_credits = subscription_credits + 1,
    successful_referral_count = successful_referral_count + 1,
    whatsapp_unlocked = whatsapp_unlocked OR successful_referral_count + 1 >= $2,
    updated_at = now()
WHERE referral_code = $1
`, referrerCode, domain.ReferralUnlockThreshold)
	metrics.ObserveNetworkRequest("postgres", "subscribers_credit_referrer", "subscribers", start, err)
	if err != nil {
		return false, err
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE subscribers SET subscription_credits = subscription_credits + 1, updated_at = now()
WHERE email = $1
`, refereeEmail)
	metrics.ObserveNetworkRequest("postgres", "subscribers_credit_referee", "subscribers", start, err)
	if err != nil {
		return false, err
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "referrals", start, err)
	if err != nil {
		return false, err
	}
	return true, nil
}
