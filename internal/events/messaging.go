package events

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange              = "storefront.events"
	CheckoutCompletedRoutingKey = "checkout.completed.v1"
	SessionLogoutRoutingKey     = "session.logout.v1"
	Producer                    = "bnpl-storefront"
)

const (
	EventCheckoutCompleted = "CheckoutCompleted"
	EventSessionLogout     = "SessionLogout"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

func declareEventsExchange(ch channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
