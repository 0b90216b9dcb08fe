package nats

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrPermanent marks a message that can never be processed. It is terminated instead of redelivered.
var ErrPermanent = errors.New("nats: permanent message failure")

// Message is one delivery. ID is the publisher's Nats-Msg-Id header, empty when the publisher set none.
type Message struct {
	ID      string
	Subject string
	Data    []byte
}

// MessageHandler processes one message. A nil error acks, ErrPermanent terminates, anything else naks.
type MessageHandler func(ctx context.Context, msg Message) error

type SubscribeConfig struct {
	Stream  string
	Subject string
	Durable string
	// MaxAckPending bounds in-flight deliveries to this process.
	MaxAckPending int
}

// Subscriber handles listening for messages from NATS.
type Subscriber struct {
	js jetstream.JetStream
}

func NewSubscriber(js jetstream.JetStream) *Subscriber {
	return &Subscriber{js: js}
}

// Subscribe registers a handler on a durable consumer so no message is lost while the service restarts. The
// returned stop function stops delivery; handlers already running finish on their own.
func (s *Subscriber) Subscribe(ctx context.Context, cfg SubscribeConfig, handler MessageHandler) (func(), error) {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		Durable:       cfg.Durable,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: cfg.MaxAckPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		m := Message{
			ID:      msg.Headers().Get(nats.MsgIdHdr),
			Subject: msg.Subject(),
			Data:    msg.Data(),
		}

		err := handler(ctx, m)
		switch {
		case err == nil:
			_ = msg.Ack()
		case errors.Is(err, ErrPermanent):
			log.Printf("[WARN] Dropping message on %s: %v", m.Subject, err)
			_ = msg.Term()
		default:
			log.Printf("[WARN] Handler failed for %s, will retry: %v", m.Subject, err)
			_ = msg.Nak()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Printf("[INFO] Subscribed to %s with durable %s", cfg.Subject, cfg.Durable)
	return cc.Stop, nil
}
