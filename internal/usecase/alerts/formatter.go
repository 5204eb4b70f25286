package alerts

import (
	"strings"

	"rent-radar/internal/domain"
)

// FormatMessage собирает текст уведомления. Отсутствующие цена и район
// просто опускаются, ссылка присутствует всегда.
func FormatMessage(l domain.Listing) string {
	parts := []string{"New Listing:"}
	if l.Price != "" {
		parts = append(parts, l.Price)
		parts = append(parts, "- "+l.Title)
	} else {
		parts = append(parts, l.Title)
	}
	if l.Neighborhood != "" {
		parts = append(parts, "in "+l.Neighborhood)
	}
	return strings.TrimSpace(strings.Join(parts, " ")) + ". Link: " + l.URL
}

// EmailSubject возвращает тему письма для объявления.
func EmailSubject(l domain.Listing) string {
	return "New Rental Alert: " + l.Title
}
