package nats

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// EventsStream keeps outbound domain events ("events.>").
	EventsStream = "EVENTS"
	// ChatStream is the work queue external chat transports publish into ("chat.inbound.>").
	ChatStream = "CHAT"

	InboundSubjectPrefix = "chat.inbound."
)

// Connect opens one NATS connection and makes sure the streams this service uses exist.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	streams := []jetstream.StreamConfig{
		{
			Name:       EventsStream,
			Subjects:   []string{"events.>"},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.LimitsPolicy,
			MaxAge:     7 * 24 * time.Hour,
			Duplicates: 2 * time.Minute,
		},
		{
			Name:       ChatStream,
			Subjects:   []string{InboundSubjectPrefix + ">"},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.WorkQueuePolicy,
			Duplicates: 10 * time.Minute,
		},
	}
	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			// Not fatal: the stream may already exist with operator-managed settings.
			log.Printf("[WARN] Failed to ensure stream %s: %v", cfg.Name, err)
		}
	}

	return nc, js, nil
}
