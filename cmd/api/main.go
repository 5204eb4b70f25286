package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"

	"rent-radar/internal/adapters/api"
	"rent-radar/internal/adapters/repo"
	"rent-radar/internal/domain"
	"rent-radar/internal/infra/cache"
	"rent-radar/internal/infra/config"
	"rent-radar/internal/infra/db"
	httpinfra "rent-radar/internal/infra/http"
	applog "rent-radar/internal/infra/log"
	"rent-radar/internal/infra/metrics"
	"rent-radar/internal/usecase/referrals"
	"rent-radar/internal/usecase/subscribers"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось подключиться к postgres")
	}
	defer pool.Close()
	store := repo.NewPostgres(pool)

	var statsCache domain.Cache
	if cfg.RedisAddr != "" {
		statsCache = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		logger.Info().Str("addr", cfg.RedisAddr).Msg("api: redis подключен")
	}

	refs := referrals.NewService(store, store, applog.Component(logger, "referrals"))
	subsSvc := subscribers.NewService(store, refs, applog.Component(logger, "subscribers"))

	srv := httpinfra.NewServer(applog.Component(logger, "http"))
	api.NewHandler(store, store, subsSvc, refs, statsCache, cfg.AdminAPIKey, applog.Component(logger, "api")).
		Register(srv.Router)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: graceful shutdown не удался")
		}
	}()

	if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Fatal().Err(err).Msg("api: сервер остановился с ошибкой")
	}
	logger.Info().Msg("api: остановлен")
}
