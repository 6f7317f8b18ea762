package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/briefkasten-app/briefkasten/internal/logger"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
	"github.com/briefkasten-app/briefkasten/internal/utils"
)

const (
	ExchangeBriefkasten = "briefkasten-events"

	RoutingKeyEmailReceived = "briefkasten-email-received"

	DefaultPublishTimeout = 5 * time.Second
)

// EmailReceivedEvent announces one newly synced message to downstream
// consumers (the AI categorizer, desktop notifications).
type EmailReceivedEvent struct {
	EventID     string     `json:"eventId"`
	AccountID   string     `json:"accountId"`
	Folder      string     `json:"folder"`
	UID         uint32     `json:"uid"`
	Subject     string     `json:"subject"`
	SenderEmail string     `json:"senderEmail"`
	SentAt      *time.Time `json:"sentAt"`
	ReceivedAt  time.Time  `json:"receivedAt"`
}

type Publisher interface {
	PublishEmailReceived(ctx context.Context, event EmailReceivedEvent) error
	Close() error
}

type RabbitMQPublisher struct {
	connection   *amqp091.Connection
	channel      *amqp091.Channel
	publishMutex sync.Mutex
	url          string
	logger       logger.Logger
}

func NewRabbitMQPublisher(rabbitmqURL string, l logger.Logger) (*RabbitMQPublisher, error) {
	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: l,
	}

	if err := publisher.connect(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	return publisher, nil
}

func (p *RabbitMQPublisher) connect() error {
	conn, err := amqp091.Dial(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	err = ch.ExchangeDeclare(ExchangeBriefkasten, "fanout", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	p.connection = conn
	p.channel = ch
	return nil
}

func (p *RabbitMQPublisher) PublishEmailReceived(ctx context.Context, event EmailReceivedEvent) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishEmailReceived")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, event.AccountID)

	if event.EventID == "" {
		event.EventID = utils.GenerateNanoIDWithPrefix("evt", 21)
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = utils.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal event")
	}

	publishCtx, cancel := context.WithTimeout(ctx, DefaultPublishTimeout)
	defer cancel()

	p.publishMutex.Lock()
	defer p.publishMutex.Unlock()

	err = p.channel.PublishWithContext(publishCtx,
		ExchangeBriefkasten,
		RoutingKeyEmailReceived,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.EventID,
			Timestamp:    event.ReceivedAt,
			Body:         body,
		})
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to publish event")
	}

	p.logger.Debugf("Published email received event for account %s uid %d", event.AccountID, event.UID)
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.publishMutex.Lock()
	defer p.publishMutex.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.connection != nil {
		return p.connection.Close()
	}
	return nil
}
