package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
// Отсутствие реквизитов канала доставки не является ошибкой запуска:
// такой канал просто пропускается при рассылке.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	AdminAPIKey string `envconfig:"ADMIN_API_KEY" default:"changeme"`

	Scrape struct {
		TargetURL      string        `envconfig:"TARGET_URL"`
		Interval       time.Duration `envconfig:"SCRAPE_INTERVAL" default:"5m"`
		RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
		MaxBackoff     time.Duration `envconfig:"MAX_BACKOFF" default:"2m"`
		UserAgent      string        `envconfig:"SCRAPER_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"`
	} `envconfig:""`

	Twilio struct {
		AccountSID   string `envconfig:"TWILIO_ACCOUNT_SID"`
		AuthToken    string `envconfig:"TWILIO_AUTH_TOKEN"`
		FromNumber   string `envconfig:"TWILIO_FROM_NUMBER"`
		WhatsAppFrom string `envconfig:"TWILIO_WHATSAPP_FROM_NUMBER"`
	} `envconfig:""`

	SMTP struct {
		Host     string `envconfig:"EMAIL_SMTP_HOST"`
		Port     int    `envconfig:"EMAIL_SMTP_PORT" default:"587"`
		Username string `envconfig:"EMAIL_SMTP_USERNAME"`
		Password string `envconfig:"EMAIL_SMTP_PASSWORD"`
		From     string `envconfig:"EMAIL_FROM_ADDRESS"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
