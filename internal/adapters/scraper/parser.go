package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"rent-radar/internal/domain"
)

// Parser извлекает объявления из HTML страницы выдачи.
type Parser struct {
	log zerolog.Logger
}

// NewParser создаёт парсер страницы выдачи.
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{log: logger}
}

// Parse возвращает объявления в порядке их появления в документе.
// Карточки без идентификатора и повторы пропускаются, битый документ
// даёт пустой срез вместо ошибки.
func (p *Parser) Parse(content, baseURL string) []domain.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		p.log.Warn().Err(err).Msg("parser: документ не разобран")
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		p.log.Warn().Str("base_url", baseURL).Err(err).Msg("parser: базовый адрес не разобран")
		base = nil
	}

	var listings []domain.Listing
	seen := make(map[string]struct{})
	doc.Find("[data-pid]").Each(func(_ int, card *goquery.Selection) {
		pid := strings.TrimSpace(card.AttrOr("data-pid", ""))
		if pid == "" {
			return
		}
		if _, ok := seen[pid]; ok {
			return
		}
		seen[pid] = struct{}{}

		anchor := card.Find(".result-title").First()
		if anchor.Length() == 0 {
			anchor = card.Find("a").First()
		}
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			p.log.Warn().Str("post_id", pid).Msg("parser: карточка без заголовка")
			title = "Untitled listing"
		}

		listings = append(listings, domain.Listing{
			PostID:       pid,
			Title:        title,
			URL:          p.resolveURL(base, baseURL, pid, anchor.AttrOr("href", "")),
			Price:        strings.TrimSpace(card.Find(".result-price").First().Text()),
			Neighborhood: strings.Trim(strings.TrimSpace(card.Find(".result-hood").First().Text()), "()"),
		})
	})
	return listings
}

func (p *Parser) resolveURL(base *url.URL, baseURL, pid, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		p.log.Warn().Str("post_id", pid).Msg("parser: карточка без ссылки, используем адрес выдачи")
		return baseURL
	}
	ref, err := url.Parse(href)
	if err != nil {
		p.log.Warn().Str("post_id", pid).Str("href", href).Err(err).Msg("parser: ссылка не разобрана")
		return baseURL
	}
	if base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
