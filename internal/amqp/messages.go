package amqp

import (
	"time"

	"github.com/rabbitmq/amqp091-go"

	"kakeibo/internal/events"
)

const contentType = "application/json"

// publishing wraps an event as a persistent JSON message. The event type is
// also set as the AMQP message type so it shows up in the management UI.
func publishing(e events.TransactionEvent) (amqp091.Publishing, error) {
	body, err := events.Encode(e)
	if err != nil {
		return amqp091.Publishing{}, err
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp091.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.TransactionID.String(),
		Type:         string(e.Type),
		Timestamp:    ts,
		Body:         body,
	}, nil
}

// acknowledger is the part of amqp091.Delivery the consumer uses.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acknowledges a delivery after handling. Malformed payloads are
// dropped, handler errors are requeued.
func settle(d acknowledger, decodeErr, handleErr error) error {
	switch {
	case decodeErr != nil:
		return d.Nack(false, false)
	case handleErr != nil:
		return d.Nack(false, true)
	default:
		return d.Ack(false)
	}
}
