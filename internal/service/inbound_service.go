package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/pkg/governor"
	pktNats "kb-assistant-be/pkg/nats"
	"kb-assistant-be/pkg/speech"
	"kb-assistant-be/pkg/store"
)

// MessageSubscriber is the part of the NATS subscriber the inbound bridge needs.
type MessageSubscriber interface {
	Subscribe(ctx context.Context, cfg pktNats.SubscribeConfig, handler pktNats.MessageHandler) (func(), error)
}

type IInboundService interface {
	// Start consumes chat.inbound.> until the returned stop function is called.
	Start(ctx context.Context) (func(), error)
}

type inboundService struct {
	subscriber    MessageSubscriber
	chat          IChatService
	maxAckPending int
	logger        logger.ILogger
}

// NewInboundService bridges external chat transports publishing on NATS into the chat service. Answers leave
// through the delivery bus, not as replies.
func NewInboundService(subscriber MessageSubscriber, chat IChatService, maxAckPending int, log logger.ILogger) IInboundService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &inboundService{
		subscriber:    subscriber,
		chat:          chat,
		maxAckPending: maxAckPending,
		logger:        log,
	}
}

func (s *inboundService) Start(ctx context.Context) (func(), error) {
	return s.subscriber.Subscribe(ctx, pktNats.SubscribeConfig{
		Stream:        pktNats.ChatStream,
		Subject:       pktNats.InboundSubjectPrefix + ">",
		Durable:       "kb-assistant-inbound",
		MaxAckPending: s.maxAckPending,
	}, s.handle)
}

// handle never asks for redelivery: the dedup guard has already claimed the message id, so a redelivered copy
// would be skipped anyway.
func (s *inboundService) handle(ctx context.Context, msg pktNats.Message) error {
	origin := store.Channel(strings.TrimPrefix(msg.Subject, pktNats.InboundSubjectPrefix))
	if !origin.Valid() {
		return fmt.Errorf("%w: unknown origin %q", pktNats.ErrPermanent, origin)
	}

	var in dto.InboundMessage
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		return fmt.Errorf("%w: %v", pktNats.ErrPermanent, err)
	}
	if in.UserId == "" {
		return fmt.Errorf("%w: missing user_id", pktNats.ErrPermanent)
	}
	if in.MessageId == "" {
		in.MessageId = msg.ID
	}

	var err error
	switch origin {
	case store.ChannelText:
		_, err = s.chat.HandleText(ctx, store.NewRequest(in.MessageId, in.UserId, store.ChannelText, in.Text, time.Now()))
	case store.ChannelVoice:
		_, err = s.chat.HandleVoice(ctx, in.MessageId, in.UserId, in.Audio, in.Format)
	}

	var ve *dto.ValidationError
	switch {
	case err == nil:
		return nil
	case governor.IsUnavailable(err):
		// The user already got an apology.
		return nil
	case errors.As(err, &ve), errors.Is(err, speech.ErrEmptyTranscript), errors.Is(err, speech.ErrNotConfigured):
		s.logger.Info("INBOUND", "Message rejected", map[string]interface{}{
			"message_id": in.MessageId,
			"origin":     string(origin),
			"error":      err,
		})
		return nil
	default:
		s.logger.Error("INBOUND", "Message failed", map[string]interface{}{
			"message_id": in.MessageId,
			"origin":     string(origin),
			"error":      err,
		})
		return fmt.Errorf("%w: %v", pktNats.ErrPermanent, err)
	}
}
