package config

import (
	"github.com/briefkasten-app/briefkasten/internal/logger"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
)

type Config struct {
	AppConfig      AppConfig
	Logger         logger.Config
	Jaeger         tracing.JaegerConfig
	PostgresConfig PostgresConfig
	CronConfig     CronConfig
}

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"11501"`
	APIKey      string `env:"BRIEFKASTEN_API_KEY" validate:"required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	// ImapTimeoutSeconds bounds every single IMAP command, not the whole sync.
	ImapTimeoutSeconds int `env:"IMAP_TIMEOUT_SECONDS" envDefault:"60"`
}

type PostgresConfig struct {
	Host            string `env:"BRIEFKASTEN_POSTGRES_HOST,required"`
	Port            string `env:"BRIEFKASTEN_POSTGRES_PORT,required"`
	User            string `env:"BRIEFKASTEN_POSTGRES_USER,required,unset"`
	Db              string `env:"BRIEFKASTEN_POSTGRES_DB,required"`
	Password        string `env:"BRIEFKASTEN_POSTGRES_PASSWORD,required,unset"`
	MaxConn         int    `env:"BRIEFKASTEN_POSTGRES_MAX_CONN" envDefault:"10"`
	MaxIdleConn     int    `env:"BRIEFKASTEN_POSTGRES_MAX_IDLE_CONN" envDefault:"5"`
	ConnMaxLifetime int    `env:"BRIEFKASTEN_POSTGRES_CONN_MAX_LIFETIME" envDefault:"300"`
	LogLevel        string `env:"BRIEFKASTEN_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"BRIEFKASTEN_POSTGRES_SSL_MODE" envDefault:"disable"`
}

type CronConfig struct {
	// CronScheduleSync drives the periodic background sync of all accounts.
	CronScheduleSync string `env:"CRON_SCHEDULE_SYNC" envDefault:"@every 15m"`
}
