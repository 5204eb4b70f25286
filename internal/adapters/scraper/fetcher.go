package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"rent-radar/internal/infra/metrics"
)

const (
	// fetchMaxAttempts — проектная константа, не настраивается снаружи.
	fetchMaxAttempts = 5
	fetchBaseDelay   = 5 * time.Second
)

// Fetcher скачивает страницу с экспоненциальным бэк-оффом и джиттером.
type Fetcher struct {
	client     *http.Client
	log        zerolog.Logger
	userAgent  string
	maxBackoff time.Duration
	sleep      func(time.Duration)
}

// NewFetcher создаёт загрузчик страниц.
func NewFetcher(timeout, maxBackoff time.Duration, userAgent string, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		log:        logger,
		userAgent:  userAgent,
		maxBackoff: maxBackoff,
		sleep:      time.Sleep,
	}
}

// Fetch возвращает тело страницы. При сетевой ошибке или не-2xx статусе
// повторяет запрос до fetchMaxAttempts раз, после чего возвращает ошибку;
// вызывающий трактует её как «в этом цикле объявлений нет».
// После удачного запроса выдерживается короткая вежливая пауза.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchMaxAttempts; attempt++ {
		body, err := f.get(ctx, url)
		if err == nil {
			f.sleep(time.Second + randomJitter(2*time.Second))
			return body, nil
		}
		lastErr = err

		wait := fetchBaseDelay << (attempt - 1)
		if wait > f.maxBackoff {
			wait = f.maxBackoff
		}
		f.log.Warn().
			Int("attempt", attempt).
			Dur("wait", wait).
			Err(err).
			Msg("fetcher: запрос не удался, ждём перед повтором")
		if attempt == fetchMaxAttempts {
			f.log.Error().Str("url", url).Msg("fetcher: исчерпаны попытки, страницу пропускаем")
			break
		}
		metrics.FetchRetries.Inc()
		f.sleep(wait + randomJitter(time.Second))
	}
	return "", fmt.Errorf("загрузка %s: %w", url, lastErr)
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	metrics.ObserveNetworkRequest("http", "page_fetch", req.URL.Host, start, err)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("неожиданный статус %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
