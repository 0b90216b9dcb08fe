package service

import (
	"context"

	"kb-assistant-be/pkg/events"
)

// EventPublisher emits integration events. The NATS publisher implements it; nil disables events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
