package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ScrapeCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scrape_cycles_total",
		Help: "Количество выполненных циклов скрейпинга",
	})
	ListingsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "listings_inserted_total",
		Help: "Новые объявления, сохранённые в БД",
	})
	FetchRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fetch_retries_total",
		Help: "Повторные попытки загрузки целевой страницы",
	})
	AlertDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_deliveries_total",
		Help: "Попытки доставки уведомлений по каналам",
	}, []string{"channel", "status"})
	AlertBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "alert_batch_seconds",
		Help:    "Время рассылки пакета уведомлений",
		Buckets: prometheus.DefBuckets,
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ScrapeCycles,
		ListingsInserted,
		FetchRetries,
		AlertDeliveries,
		AlertBatchSeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveAlertDelivery учитывает попытку доставки уведомления.
func ObserveAlertDelivery(channel string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AlertDeliveries.WithLabelValues(channel, status).Inc()
}
