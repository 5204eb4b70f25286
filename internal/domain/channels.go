package domain

import "strings"

// Channel — канал доставки уведомлений.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// knownChannel проверяет, что значение входит в поддерживаемый набор.
func knownChannel(c Channel) bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp, ChannelEmail:
		return true
	}
	return false
}

// ParseChannels разбирает сохранённый список каналов.
// Пустой или полностью некорректный список превращается в {sms}.
func ParseChannels(raw string) []Channel {
	var channels []Channel
	seen := make(map[Channel]struct{}, 3)
	for _, part := range strings.Split(raw, ",") {
		c := Channel(strings.ToLower(strings.TrimSpace(part)))
		if !knownChannel(c) {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		channels = append(channels, c)
	}
	if len(channels) == 0 {
		return []Channel{ChannelSMS}
	}
	return channels
}

// NormalizeChannels удаляет дубли и неизвестные значения, сохраняя порядок.
// Пустой результат заменяется на {sms}.
func NormalizeChannels(in []Channel) []Channel {
	var channels []Channel
	seen := make(map[Channel]struct{}, len(in))
	for _, c := range in {
		c = Channel(strings.ToLower(strings.TrimSpace(string(c))))
		if !knownChannel(c) {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		channels = append(channels, c)
	}
	if len(channels) == 0 {
		return []Channel{ChannelSMS}
	}
	return channels
}

// JoinChannels сериализует список каналов для хранения в БД.
func JoinChannels(channels []Channel) string {
	parts := make([]string, 0, len(channels))
	for _, c := range channels {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}
