package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/metrics"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/pkg/serverutils"
	"kb-assistant-be/pkg/command"
	"kb-assistant-be/pkg/dedup"
	"kb-assistant-be/pkg/extractor"
	"kb-assistant-be/pkg/governor"
	"kb-assistant-be/pkg/resolver"
	"kb-assistant-be/pkg/session"
	"kb-assistant-be/pkg/speech"
	"kb-assistant-be/pkg/store"
	"kb-assistant-be/pkg/utils"
)

type IChatService interface {
	// HandleText runs a typed message: a slash command or a query to resolve.
	HandleText(ctx context.Context, req store.Request) (*dto.ChatResponse, error)
	// HandleVoice transcribes audio, resolves the transcript in the user's voice mode and synthesizes the answer.
	HandleVoice(ctx context.Context, messageID, userID string, audio []byte, format string) (*dto.VoiceResponse, error)
	// AttachDocument extracts an uploaded document into the user's pending context.
	AttachDocument(ctx context.Context, userID, fileName, contentType string, data []byte) (*dto.DocumentResponse, error)
	Session(ctx context.Context, userID string) *dto.SessionResponse
	SetMode(ctx context.Context, userID string, req *dto.ModeRequest) (*dto.SessionResponse, error)
	SpeechEnabled() bool
}

type ChatConfig struct {
	RequestTimeout    time.Duration
	TranscribeTimeout time.Duration
	SynthesizeTimeout time.Duration
	PendingContextTTL time.Duration
	MaxContextChars   int
	MaxDocumentBytes  int
}

// ChatDeps groups the collaborators of the chat service. STT, TTS and Delivery may be nil.
type ChatDeps struct {
	Requests   *governor.Governor
	Operations *governor.Governor
	Resolver   *resolver.Resolver
	Sessions   *session.ModeStore
	Dedup      dedup.Guard
	Knowledge  IKnowledgeService
	Extractor  extractor.Extractor
	STT        speech.SpeechToText
	TTS        speech.TextToSpeech
	Delivery   IDeliveryService
	Logger     logger.ILogger
}

type chatService struct {
	ChatDeps
	cfg ChatConfig
}

func NewChatService(deps ChatDeps, cfg ChatConfig) IChatService {
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Dedup == nil {
		deps.Dedup = dedup.NewMemoryGuard(dedup.DefaultCapacity)
	}
	if deps.Extractor == nil {
		deps.Extractor = extractor.New()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = 20 * time.Second
	}
	if cfg.SynthesizeTimeout <= 0 {
		cfg.SynthesizeTimeout = 15 * time.Second
	}
	if cfg.PendingContextTTL <= 0 {
		cfg.PendingContextTTL = 30 * time.Minute
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 20000
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = 5 * 1024 * 1024
	}
	return &chatService{ChatDeps: deps, cfg: cfg}
}

func (s *chatService) SpeechEnabled() bool {
	return s.STT != nil
}

func (s *chatService) HandleText(ctx context.Context, req store.Request) (*dto.ChatResponse, error) {
	if s.duplicate(req.ID, store.ChannelText) {
		return &dto.ChatResponse{RequestId: req.ID, Duplicate: true}, nil
	}

	cmd, err := command.Parse(req.Query)
	if err != nil {
		return s.reply(ctx, req, "error", strings.TrimPrefix(err.Error(), command.ErrMalformed.Error()+": ")), nil
	}

	switch cmd.Kind {
	case command.KindMode:
		if err := s.Sessions.SetMode(req.UserID, cmd.Channel, cmd.Mode); err != nil {
			return nil, err
		}
		return s.reply(ctx, req, string(cmd.Kind), fmt.Sprintf("%s mode set to %s.", capitalize(string(cmd.Channel)), cmd.Mode)), nil

	case command.KindAdd:
		return s.teach(ctx, req, cmd)

	case command.KindForget:
		s.Sessions.ClearPendingContext(req.UserID)
		return s.reply(ctx, req, string(cmd.Kind), "Attached document forgotten."), nil

	case command.KindStatus:
		return s.reply(ctx, req, string(cmd.Kind), s.status(req.UserID)), nil

	case command.KindHelp:
		return s.reply(ctx, req, string(cmd.Kind), "Ask me anything, or use: "+command.Usage), nil
	}

	req.Query = cmd.Query
	res, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := toChatResponse(req.ID, res)
	s.deliver(ctx, req, resp)
	return resp, nil
}

func (s *chatService) HandleVoice(ctx context.Context, messageID, userID string, audio []byte, format string) (*dto.VoiceResponse, error) {
	if s.STT == nil {
		return nil, speech.ErrNotConfigured
	}
	if len(audio) == 0 {
		return nil, &dto.ValidationError{Fields: map[string]string{"audio": "required"}}
	}
	if s.duplicate(messageID, store.ChannelVoice) {
		return &dto.VoiceResponse{ChatResponse: dto.ChatResponse{RequestId: messageID, Duplicate: true}}, nil
	}

	req := store.NewRequest(messageID, userID, store.ChannelVoice, "", time.Now())
	out, err := governor.Run(s.Requests, ctx, "voice", s.cfg.RequestTimeout, func(ctx context.Context) (*dto.VoiceResponse, error) {
		transcript, err := governor.Run(s.Operations, ctx, "transcribe", s.cfg.TranscribeTimeout, func(ctx context.Context) (string, error) {
			return s.STT.Transcribe(ctx, audio, format)
		})
		if err != nil {
			return nil, fmt.Errorf("transcribe: %w", err)
		}

		res := s.Resolver.Resolve(ctx, transcript, s.Sessions.GetMode(userID, store.ChannelVoice), s.resolveOptions(userID)...)
		resp := &dto.VoiceResponse{ChatResponse: *toChatResponse(req.ID, res), Transcript: transcript}
		resp.Audio = s.synthesize(ctx, req.ID, res.Text)
		return resp, nil
	})
	if err != nil {
		if governor.IsUnavailable(err) {
			s.apologize(ctx, req, err)
		}
		return nil, err
	}

	req.Query = out.Transcript
	s.deliver(ctx, req, &out.ChatResponse)
	return out, nil
}

// synthesize is best effort: the text answer is still returned when speech fails.
func (s *chatService) synthesize(ctx context.Context, requestID, text string) []byte {
	if s.TTS == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	audio, err := governor.Run(s.Operations, ctx, "synthesize", s.cfg.SynthesizeTimeout, func(ctx context.Context) ([]byte, error) {
		return s.TTS.Synthesize(ctx, text)
	})
	if err != nil {
		s.Logger.Warn("CHAT", "Speech synthesis failed, answering with text only", map[string]interface{}{
			"request_id": requestID,
			"error":      err,
		})
		return nil
	}
	return audio
}

func (s *chatService) AttachDocument(ctx context.Context, userID, fileName, contentType string, data []byte) (*dto.DocumentResponse, error) {
	if len(data) == 0 {
		return nil, &dto.ValidationError{Fields: map[string]string{"file": "required"}}
	}
	if len(data) > s.cfg.MaxDocumentBytes {
		return nil, &dto.ValidationError{Fields: map[string]string{"file": fmt.Sprintf("max=%d bytes", s.cfg.MaxDocumentBytes)}}
	}

	if extractor.DetectType(contentType, data) == "" {
		contentType = fileName
	}
	text, err := s.Extractor.Extract(data, contentType)
	if err != nil {
		if errors.Is(err, extractor.ErrUnsupportedType) || errors.Is(err, extractor.ErrNotText) {
			return nil, &dto.ValidationError{Fields: map[string]string{"file": err.Error()}}
		}
		return nil, err
	}
	if text == "" {
		return nil, &dto.ValidationError{Fields: map[string]string{"file": "no text found"}}
	}

	kept := utils.TruncateRunes(text, s.cfg.MaxContextChars)
	s.Sessions.SetPendingContext(userID, fileName, kept, s.cfg.PendingContextTTL)

	s.Logger.Info("CHAT", "Document attached as pending context", map[string]interface{}{
		"user_id":   userID,
		"file_name": fileName,
		"chars":     len([]rune(kept)),
	})
	return &dto.DocumentResponse{
		FileName:  fileName,
		Chars:     len([]rune(kept)),
		Truncated: len(kept) < len(text),
		ExpiresIn: s.cfg.PendingContextTTL.String(),
	}, nil
}

func (s *chatService) Session(ctx context.Context, userID string) *dto.SessionResponse {
	snap := s.Sessions.Snapshot(userID)
	resp := &dto.SessionResponse{
		UserId:    snap.UserID,
		VoiceMode: string(snap.VoiceMode),
		TextMode:  string(snap.TextMode),
	}
	if snap.PendingContext != nil {
		name := snap.PendingContext.FileName
		resp.PendingContext = &name
	}
	return resp
}

func (s *chatService) SetMode(ctx context.Context, userID string, req *dto.ModeRequest) (*dto.SessionResponse, error) {
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := s.Sessions.SetMode(userID, store.Channel(req.Channel), store.Mode(req.Mode)); err != nil {
		return nil, err
	}
	return s.Session(ctx, userID), nil
}

// resolve admits one resolution under the request governor. Governor refusals are delivered as an apology and
// returned to the caller.
func (s *chatService) resolve(ctx context.Context, req store.Request) (resolver.AnswerResult, error) {
	mode := s.Sessions.GetMode(req.UserID, req.Origin)
	opts := s.resolveOptions(req.UserID)

	res, err := governor.Run(s.Requests, ctx, "resolve", s.cfg.RequestTimeout, func(ctx context.Context) (resolver.AnswerResult, error) {
		return s.Resolver.Resolve(ctx, req.Query, mode, opts...), nil
	})
	if err != nil {
		if governor.IsUnavailable(err) {
			s.apologize(ctx, req, err)
		}
		return resolver.AnswerResult{}, err
	}
	return res, nil
}

func (s *chatService) resolveOptions(userID string) []resolver.ResolveOption {
	if pc, ok := s.Sessions.PendingContext(userID); ok {
		return []resolver.ResolveOption{resolver.WithDocumentContext(pc.FileName, pc.Text)}
	}
	return nil
}

func (s *chatService) teach(ctx context.Context, req store.Request, cmd command.Command) (*dto.ChatResponse, error) {
	_, err := s.Knowledge.Create(ctx, req.UserID, &dto.CreateKnowledgeRequest{
		Question: cmd.Question,
		Answer:   cmd.Answer,
	})
	var ve *dto.ValidationError
	if errors.As(err, &ve) {
		return s.reply(ctx, req, string(cmd.Kind), "I couldn't save that: "+ve.Error()), nil
	}
	if err != nil {
		return nil, err
	}
	return s.reply(ctx, req, string(cmd.Kind), fmt.Sprintf("Saved. I'll answer %q with that from now on.", cmd.Question)), nil
}

func (s *chatService) status(userID string) string {
	snap := s.Sessions.Snapshot(userID)
	var b strings.Builder
	fmt.Fprintf(&b, "Voice mode: %s. Text mode: %s.", snap.VoiceMode, snap.TextMode)
	if pc := snap.PendingContext; pc != nil {
		fmt.Fprintf(&b, " Attached document: %s (expires %s).", pc.FileName, pc.ExpiresAt.Format(time.Kitchen))
	} else {
		b.WriteString(" No attached document.")
	}
	if !s.Resolver.LLMEnabled() {
		b.WriteString(" LLM answers are disabled.")
	}
	return b.String()
}

func (s *chatService) duplicate(id string, origin store.Channel) bool {
	if !s.Dedup.Seen(id) {
		return false
	}
	metrics.DuplicatesTotal.WithLabelValues(string(origin)).Inc()
	s.Logger.Info("CHAT", "Duplicate message skipped", map[string]interface{}{
		"message_id": id,
		"origin":     string(origin),
	})
	return true
}

func (s *chatService) reply(ctx context.Context, req store.Request, kind, text string) *dto.ChatResponse {
	resp := &dto.ChatResponse{RequestId: req.ID, Text: text, Command: kind}
	s.deliver(ctx, req, resp)
	return resp
}

func (s *chatService) apologize(ctx context.Context, req store.Request, cause error) {
	s.Logger.Warn("CHAT", "Request refused by governor", map[string]interface{}{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"error":      cause,
	})
	s.deliver(ctx, req, &dto.ChatResponse{RequestId: req.ID, Text: serverutils.ApologyMessage})
}

// deliver hands the response to the delivery bus. It never fails the request.
func (s *chatService) deliver(ctx context.Context, req store.Request, resp *dto.ChatResponse) {
	if s.Delivery == nil {
		return
	}
	err := s.Delivery.Deliver(context.WithoutCancel(ctx), &dto.ChatDelivery{
		UserId:   req.UserID,
		Origin:   string(req.Origin),
		Query:    req.Query,
		Response: *resp,
	})
	if err != nil {
		s.Logger.Warn("CHAT", "Failed to deliver response", map[string]interface{}{
			"request_id": req.ID,
			"error":      err,
		})
	}
}

func toChatResponse(requestID string, res resolver.AnswerResult) *dto.ChatResponse {
	return &dto.ChatResponse{
		RequestId: requestID,
		Source:    string(res.Source),
		Text:      res.Text,
		Score:     res.Score,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
