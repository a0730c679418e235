package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher emits storefront events.
type Publisher interface {
	PublishCheckoutCompleted(ctx context.Context, p CheckoutCompletedPayload, meta EnvelopeMetadata) error
	PublishSessionLogout(ctx context.Context, p SessionLogoutPayload, meta EnvelopeMetadata) error
	Close() error
}

// AMQPPublisher publishes JSON envelopes to the storefront topic exchange.
type AMQPPublisher struct {
	ch  channel
	now func() time.Time
}

func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return newAMQPPublisher(ch)
}

func newAMQPPublisher(ch channel) (*AMQPPublisher, error) {
	// Declare the exchange so publish never fails due to missing infra
	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare %s: %w", EventsExchange, err)
	}
	return &AMQPPublisher{ch: ch, now: time.Now}, nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

func (p *AMQPPublisher) PublishCheckoutCompleted(ctx context.Context, payload CheckoutCompletedPayload, meta EnvelopeMetadata) error {
	env := BuildCheckoutCompletedEnvelope(payload, meta, p.now())
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", EventCheckoutCompleted, err)
	}
	return p.publishJSON(ctx, CheckoutCompletedRoutingKey, env.EventID, env.CorrelationID, body)
}

func (p *AMQPPublisher) PublishSessionLogout(ctx context.Context, payload SessionLogoutPayload, meta EnvelopeMetadata) error {
	env := BuildSessionLogoutEnvelope(payload, meta, p.now())
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", EventSessionLogout, err)
	}
	return p.publishJSON(ctx, SessionLogoutRoutingKey, env.EventID, env.CorrelationID, body)
}

func (p *AMQPPublisher) publishJSON(ctx context.Context, routingKey, messageID, correlationID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     messageID,
			CorrelationId: correlationID,
			Timestamp:     p.now().UTC(),
			Body:          body,
		},
	)
}

// LogPublisher only logs events. It is used when no broker is configured.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) PublishCheckoutCompleted(_ context.Context, payload CheckoutCompletedPayload, _ EnvelopeMetadata) error {
	p.logger().Info("checkout completed",
		zap.String("session_id", payload.SessionID),
		zap.String("reference", payload.Reference),
	)
	return nil
}

func (p LogPublisher) PublishSessionLogout(_ context.Context, payload SessionLogoutPayload, _ EnvelopeMetadata) error {
	p.logger().Info("session logout",
		zap.String("session_id", payload.SessionID),
		zap.String("service", payload.Service),
		zap.String("reason", payload.Reason),
	)
	return nil
}

func (p LogPublisher) Close() error { return nil }

func (p LogPublisher) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
