package services

import (
	"log"
	"time"

	"github.com/briefkasten-app/briefkasten/config"
	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/logger"
	"github.com/briefkasten-app/briefkasten/services/events"
	"github.com/briefkasten-app/briefkasten/services/imap"
)

type Services struct {
	EventsPublisher events.Publisher
	SyncService     interfaces.SyncService
}

func InitServices(cfg *config.Config, l logger.Logger, repositories *interfaces.Repositories) *Services {
	var publisher events.Publisher
	if cfg.AppConfig.RabbitMQURL != "" {
		p, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, l)
		if err != nil {
			// The engine runs fine without a broker, events are advisory.
			log.Printf("RabbitMQ unavailable, continuing without events: %v", err)
		} else {
			publisher = p
		}
	}

	return &Services{
		EventsPublisher: publisher,
		SyncService: imap.NewSyncService(
			l,
			repositories,
			publisher,
			time.Duration(cfg.AppConfig.ImapTimeoutSeconds)*time.Second,
		),
	}
}
