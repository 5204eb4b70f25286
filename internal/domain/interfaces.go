package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNoContact возвращается, когда у подписчика нет ни одного контактного ключа.
var ErrNoContact = errors.New("не указан контакт подписчика")

// ErrSubscriberNotFound возвращается при поиске несуществующего подписчика.
var ErrSubscriberNotFound = errors.New("подписчик не найден")

// UpsertSubscriberParams — данные для создания или обновления подписчика.
// Ключ конфликта выбирается в порядке phone > email > whatsapp.
type UpsertSubscriberParams struct {
	Tier       Tier
	Lifetime   bool
	Channels   []Channel
	Phone      string
	Email      string
	WhatsApp   string
	ReferredBy string
}

// ListingRepo управляет объявлениями.
type ListingRepo interface {
	// InsertListing сохраняет объявление, если его ещё нет. false — уже было.
	InsertListing(l Listing) (bool, error)
	// ListUnnotified возвращает неразосланные объявления в порядке создания.
	// limit <= 0 означает «без ограничения».
	ListUnnotified(limit int) ([]Listing, error)
	// MarkNotified проставляет notified_at; уже отмеченные записи не трогает.
	MarkNotified(postIDs []string) error
	ListRecent(limit int) ([]Listing, error)
	ListFiltered(f ListingFilter) ([]Listing, error)
	CountListings() (int, error)
	// ListNeighborhoods: limit > 0 — свежие районы, иначе все по алфавиту.
	ListNeighborhoods(limit int) ([]string, error)
}

// SubscriberRepo управляет подписчиками.
type SubscriberRepo interface {
	UpsertSubscriber(params UpsertSubscriberParams) (bool, error)
	ListSubscribers() ([]Subscriber, error)
	CountSubscribers() (int, error)
	GetSubscriberByEmail(email string) (Subscriber, error)
	// EnsureReferralCode возвращает код подписчика, генерируя его при отсутствии.
	EnsureReferralCode(subscriberID int64) (string, error)
	SetVerificationToken(email, token string) (bool, error)
	VerifyEmail(token string) (bool, error)
}

// ReferralRepo ведёт реферальную книгу.
type ReferralRepo interface {
	// RecordReferral сохраняет связь; false — пара уже существует.
	RecordReferral(referrerCode, refereeEmail, refereePhone string) (bool, error)
	PendingReferralByReferee(refereeEmail string) (Referral, bool, error)
	// GrantReward начисляет награду ровно один раз; false — уже начислена.
	GrantReward(referralID int64) (bool, error)
}

// Fetcher загружает сырое содержимое страницы.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Parser превращает разметку страницы в кандидатов объявлений.
type Parser interface {
	Parse(content, baseURL string) []Listing
}

// Transport доставляет сообщение по одному каналу.
// Недонастроенный транспорт сообщает об этом через Configured, а не ошибкой.
type Transport interface {
	Configured() bool
	Deliver(ctx context.Context, msg OutboundMessage) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
