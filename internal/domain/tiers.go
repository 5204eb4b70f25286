package domain

import "strings"

// Tier — тариф подписчика.
type Tier string

const (
	TierFree      Tier = "FREE"
	TierEssential Tier = "ESSENTIAL"
	TierElite     Tier = "ELITE"
)

// ParseTier приводит строку к известному тарифу, по умолчанию FREE.
func ParseTier(raw string) Tier {
	switch Tier(strings.ToUpper(strings.TrimSpace(raw))) {
	case TierEssential:
		return TierEssential
	case TierElite:
		return TierElite
	}
	return TierFree
}

// Paid сообщает, является ли тариф платным.
// Оплата платного тарифа — квалифицирующее событие для реферальной награды.
func (t Tier) Paid() bool {
	return t == TierEssential || t == TierElite
}
