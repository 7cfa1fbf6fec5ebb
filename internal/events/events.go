// Package events carries transaction change notifications between the API
// and the snapshot worker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/core"
)

type EventType string

const (
	TransactionCreated EventType = "created"
	TransactionUpdated EventType = "updated"
	TransactionDeleted EventType = "deleted"
)

// TransactionEvent says that one month of one user's ledger changed. It holds
// no amounts; consumers reload what they need from the store.
type TransactionEvent struct {
	Type          EventType `json:"type"`
	TransactionID uuid.UUID `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Year          int       `json:"year"`
	Month         int       `json:"month"`
	Timestamp     time.Time `json:"timestamp"`
}

var ErrInvalidEvent = errors.New("invalid event")

// NewTransactionEvent builds the event for tx's month.
func NewTransactionEvent(typ EventType, tx core.Transaction, now time.Time) TransactionEvent {
	return TransactionEvent{
		Type:          typ,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Year:          tx.OccurredOn.Year(),
		Month:         tx.OccurredOn.Month(),
		Timestamp:     now.UTC(),
	}
}

func (e TransactionEvent) Validate() error {
	switch e.Type {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	}
	if err := core.ValidatePeriod(e.Year, e.Month); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

// Encode marshals the event as JSON.
func Encode(e TransactionEvent) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses and validates a JSON event.
func Decode(data []byte) (TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return TransactionEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return TransactionEvent{}, err
	}
	return e, nil
}

// Publisher sends events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e TransactionEvent) error
	Close() error
}

// Handler processes one event. A returned error asks the transport to
// deliver the event again.
type Handler func(ctx context.Context, e TransactionEvent) error

// Consumer delivers events to a handler until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, h Handler) error
	Close() error
}

// NopPublisher drops every event. Used when EVENTS_BACKEND is none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransactionEvent) error { return nil }
func (NopPublisher) Close() error                                   { return nil }

const (
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
)

// Backoff returns the reconnect delay for a zero based attempt: one second
// doubling per attempt, capped at 30 seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := baseBackoff << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
