package domain

import "time"

// Listing описывает объявление, снятое со страницы площадки.
// Пустые Price и Neighborhood означают, что поле на странице отсутствовало.
type Listing struct {
	PostID       string
	Title        string
	URL          string
	Price        string
	Neighborhood string
	CreatedAt    time.Time
	NotifiedAt   *time.Time
}

// Subscriber описывает получателя уведомлений.
type Subscriber struct {
	ID                  int64
	Tier                Tier
	Lifetime            bool
	Channels            []Channel
	Phone               string
	Email               string
	WhatsApp            string
	EmailVerified       bool
	ReferralCode        string
	ReferredBy          string
	SuccessfulReferrals int
	Credits             int
	WhatsAppUnlocked    bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Referral хранит связь «пригласивший — приглашённый».
// RewardGranted переходит из false в true ровно один раз.
type Referral struct {
	ID            int64
	ReferrerCode  string
	RefereeEmail  string
	RefereePhone  string
	RewardGranted bool
	CreatedAt     time.Time
	RewardedAt    *time.Time
}

// SubscriptionEvent приходит от внешнего биллинга при смене тарифа.
type SubscriptionEvent struct {
	Tier         Tier
	Lifetime     bool
	Channels     []Channel
	Phone        string
	Email        string
	WhatsApp     string
	ReferralCode string
}

// OutboundMessage — сообщение для доставки по одному каналу.
// Subject используется только почтовым транспортом.
type OutboundMessage struct {
	To      string
	Subject string
	Body    string
}

// ListingFilter задаёт условия выборки объявлений для витрины.
type ListingFilter struct {
	MinPrice     *int
	MaxPrice     *int
	Neighborhood string
	Keyword      string
	Limit        int
}

// ReferralUnlockThreshold — число успешных рефералов, открывающее WhatsApp.
const ReferralUnlockThreshold = 3
