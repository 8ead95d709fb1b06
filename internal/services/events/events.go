package events

import (
	"context"
	"errors"
)

const (
	OrderCreated = "order.created"
	OrderUpdated = "order.updated"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, data any) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, routingKey string, data any) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, routingKey, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Publisher = Nop{}
	_ Publisher = Multi(nil)
	_ Publisher = (*AMQPPublisher)(nil)
)
