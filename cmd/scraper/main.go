package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"rent-radar/internal/adapters/mail"
	"rent-radar/internal/adapters/repo"
	scraperadapter "rent-radar/internal/adapters/scraper"
	"rent-radar/internal/adapters/twilio"
	"rent-radar/internal/domain"
	"rent-radar/internal/infra/config"
	"rent-radar/internal/infra/db"
	applog "rent-radar/internal/infra/log"
	"rent-radar/internal/infra/metrics"
	"rent-radar/internal/usecase/alerts"
	"rent-radar/internal/usecase/scrape"
)

func main() {
	once := flag.Bool("once", false, "выполнить один цикл и выйти")
	flag.Parse()

	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.StartServer(ctx, logger, ":9090")

	if cfg.Scrape.TargetURL == "" {
		logger.Fatal().Msg("scraper: не задан TARGET_URL")
	}

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scraper: не удалось подключиться к postgres")
	}
	defer pool.Close()
	store := repo.NewPostgres(pool)

	twilioClient := twilio.NewClient(twilio.Config{
		AccountSID:   cfg.Twilio.AccountSID,
		AuthToken:    cfg.Twilio.AuthToken,
		FromNumber:   cfg.Twilio.FromNumber,
		WhatsAppFrom: cfg.Twilio.WhatsAppFrom,
	})
	transports := map[domain.Channel]domain.Transport{
		domain.ChannelSMS:      twilio.NewSMSTransport(twilioClient),
		domain.ChannelWhatsApp: twilio.NewWhatsAppTransport(twilioClient),
		domain.ChannelEmail: mail.NewTransport(mail.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}),
	}

	alertSvc := alerts.NewService(store, store, transports, applog.Component(logger, "alerts"))
	scrapeSvc := scrape.NewService(
		scraperadapter.NewFetcher(cfg.Scrape.RequestTimeout, cfg.Scrape.MaxBackoff, cfg.Scrape.UserAgent, applog.Component(logger, "fetcher")),
		scraperadapter.NewParser(applog.Component(logger, "parser")),
		store,
		alertSvc,
		cfg.Scrape.TargetURL,
		cfg.Scrape.Interval,
		applog.Component(logger, "scrape"),
	)

	logger.Info().
		Str("target_url", cfg.Scrape.TargetURL).
		Dur("interval", cfg.Scrape.Interval).
		Bool("once", *once).
		Msg("scraper: запущен")

	if *once {
		if err := scrapeSvc.RunOnce(ctx); err != nil {
			logger.Fatal().Err(err).Msg("scraper: цикл завершился ошибкой")
		}
	} else if err := scrapeSvc.RunLoop(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scraper: цикл завершился ошибкой")
	}
	logger.Info().Msg("scraper: остановлен")
}
