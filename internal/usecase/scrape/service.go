package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"rent-radar/internal/domain"
	"rent-radar/internal/infra/metrics"
)

// ErrNoTargetURL возвращается, когда адрес выдачи не задан.
var ErrNoTargetURL = errors.New("не задан адрес страницы выдачи")

// Alerter рассылает уведомления о пачке объявлений.
type Alerter interface {
	SendAlerts(ctx context.Context, listings []domain.Listing) (int, error)
}

// Service — цикл скрейпинга: загрузка, разбор, сохранение, рассылка.
type Service struct {
	fetcher   domain.Fetcher
	parser    domain.Parser
	listings  domain.ListingRepo
	alerts    Alerter
	targetURL string
	interval  time.Duration
	log       zerolog.Logger
}

// NewService создаёт сервис скрейпинга.
func NewService(
	fetcher domain.Fetcher,
	parser domain.Parser,
	listings domain.ListingRepo,
	alerts Alerter,
	targetURL string,
	interval time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		fetcher:   fetcher,
		parser:    parser,
		listings:  listings,
		alerts:    alerts,
		targetURL: targetURL,
		interval:  interval,
		log:       logger,
	}
}

// RunOnce выполняет один цикл. Неудачная загрузка страницы не считается
// ошибкой цикла: рассылка всё равно подбирает накопившуюся очередь.
func (s *Service) RunOnce(ctx context.Context) error {
	if s.targetURL == "" {
		return ErrNoTargetURL
	}
	metrics.ScrapeCycles.Inc()

	inserted := 0
	fetched := 0
	content, err := s.fetcher.Fetch(ctx, s.targetURL)
	if err != nil {
		s.log.Warn().Err(err).Msg("scrape: цикл без новых объявлений")
	} else {
		parsed := s.parser.Parse(content, s.targetURL)
		fetched = len(parsed)
		for _, l := range parsed {
			ok, err := s.listings.InsertListing(l)
			if err != nil {
				return err
			}
			if ok {
				inserted++
				metrics.ListingsInserted.Inc()
			}
		}
	}

	pending, err := s.listings.ListUnnotified(0)
	if err != nil {
		return err
	}
	sent, err := s.alerts.SendAlerts(ctx, pending)
	if err != nil {
		return err
	}

	s.log.Info().
		Int("fetched", fetched).
		Int("inserted", inserted).
		Int("pending", len(pending)).
		Int("alerts_sent", sent).
		Msg("scrape: цикл завершён")
	return nil
}

// RunLoop крутит циклы до отмены контекста. Пауза между циклами
// учитывает длительность самого цикла.
func (s *Service) RunLoop(ctx context.Context) error {
	if s.targetURL == "" {
		return ErrNoTargetURL
	}
	for {
		start := time.Now()
		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error().Err(err).Msg("scrape: цикл завершился ошибкой")
		}

		sleepFor := s.interval - time.Since(start)
		if sleepFor < 0 {
			sleepFor = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleepFor):
		}
	}
}
