package service

import (
	"context"
	"encoding/json"
	"fmt"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// DeliveryTopic is the in-process topic answers travel on.
const DeliveryTopic = "chat.answered"

// AnswerNotifier pushes a message to every connection of a user. The websocket hub implements it.
type AnswerNotifier interface {
	Send(ctx context.Context, userID string, message interface{}) error
}

type IDeliveryService interface {
	// Deliver queues a response for the user's live connections and the outbound event stream.
	Deliver(ctx context.Context, d *dto.ChatDelivery) error
	// Consume starts forwarding queued responses until ctx ends.
	Consume(ctx context.Context) error
}

type deliveryService struct {
	pubSub    *gochannel.GoChannel
	notifier  AnswerNotifier
	publisher EventPublisher
	logger    logger.ILogger
}

// NewDeliveryService wires the bus. notifier and publisher may be nil.
func NewDeliveryService(pubSub *gochannel.GoChannel, notifier AnswerNotifier, publisher EventPublisher, log logger.ILogger) IDeliveryService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &deliveryService{
		pubSub:    pubSub,
		notifier:  notifier,
		publisher: publisher,
		logger:    log,
	}
}

func (s *deliveryService) Deliver(ctx context.Context, d *dto.ChatDelivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return s.pubSub.Publish(DeliveryTopic, msg)
}

func (s *deliveryService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, DeliveryTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *deliveryService) processMessage(ctx context.Context, msg *message.Message) {
	var d dto.ChatDelivery
	if err := json.Unmarshal(msg.Payload, &d); err != nil {
		s.logger.Error("DELIVERY", "Dropping unreadable delivery", map[string]interface{}{"error": err})
		msg.Ack()
		return
	}

	if s.notifier != nil && d.UserId != "" {
		err := s.notifier.Send(ctx, d.UserId, dto.SocketMessage{
			Type:     "answer",
			Query:    d.Query,
			Response: d.Response,
		})
		if err != nil {
			s.logger.Warn("DELIVERY", "Websocket push failed", map[string]interface{}{
				"user_id": d.UserId,
				"error":   err,
			})
		}
	}

	if s.publisher != nil && !d.Response.Duplicate {
		evt := events.ChatAnswered(d.Response.RequestId, d.UserId, d.Origin, d.Response.Source, d.Response.Text, d.Response.Score)
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("DELIVERY", "Failed to publish answer event", map[string]interface{}{
				"request_id": d.Response.RequestId,
				"error":      err,
			})
		}
	}

	// Both sinks are best effort, so the message is never redelivered.
	msg.Ack()
}
