package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/pkg/serverutils"
	"kb-assistant-be/internal/repository/memory"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/pkg/dedup"
	"kb-assistant-be/pkg/governor"
	"kb-assistant-be/pkg/match"
	"kb-assistant-be/pkg/resolver"
	"kb-assistant-be/pkg/session"
	"kb-assistant-be/pkg/speech"
	"kb-assistant-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDelivery struct {
	mu         sync.Mutex
	deliveries []*dto.ChatDelivery
}

func (r *recordingDelivery) Deliver(ctx context.Context, d *dto.ChatDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return nil
}

func (r *recordingDelivery) Consume(ctx context.Context) error { return nil }

func (r *recordingDelivery) all() []*dto.ChatDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*dto.ChatDelivery(nil), r.deliveries...)
}

type fakeSTT struct {
	transcript string
	err        error
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	return f.transcript, f.err
}

type fakeTTS struct {
	audio []byte
	err   error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.err
}

type chatFixture struct {
	svc        IChatService
	repo       *memory.KnowledgeRepository
	sessions   *session.ModeStore
	delivery   *recordingDelivery
	requests   *governor.Governor
	operations *governor.Governor
}

func newChatFixture(t *testing.T, stt speech.SpeechToText, tts speech.TextToSpeech) *chatFixture {
	t.Helper()
	log := logger.NewNopLogger()

	repo := memory.NewKnowledgeRepository()
	require.NoError(t, repo.Create(context.Background(), &entity.KnowledgeEntry{
		Question: "What are your opening hours?",
		Answer:   "We are open 9 to 5 on weekdays.",
	}))

	requests := governor.New(governor.Config{Name: "requests", Capacity: 2}, log)
	operations := governor.New(governor.Config{Name: "operations", Capacity: 4}, log)
	t.Cleanup(func() {
		_ = requests.Shutdown(context.Background())
		_ = operations.Shutdown(context.Background())
	})

	res := resolver.New(repo, nil, operations, resolver.DefaultTables(), match.NewDefaultScorer(), resolver.Config{
		LookupTimeout: time.Second,
		LLMTimeout:    time.Second,
	}, log)

	sessions := session.NewModeStore(memory.NewSessionRepository())
	delivery := &recordingDelivery{}

	svc := NewChatService(ChatDeps{
		Requests:   requests,
		Operations: operations,
		Resolver:   res,
		Sessions:   sessions,
		Dedup:      dedup.NewMemoryGuard(10),
		Knowledge:  NewKnowledgeService(unitofwork.NewMemoryRepositoryFactory(repo), nil, log),
		STT:        stt,
		TTS:        tts,
		Delivery:   delivery,
		Logger:     log,
	}, ChatConfig{RequestTimeout: 2 * time.Second})

	return &chatFixture{
		svc:        svc,
		repo:       repo,
		sessions:   sessions,
		delivery:   delivery,
		requests:   requests,
		operations: operations,
	}
}

func textRequest(id, query string) store.Request {
	return store.NewRequest(id, "u1", store.ChannelText, query, time.Now())
}

func TestChatService_HandleText(t *testing.T) {
	ctx := context.Background()

	t.Run("exact answer is returned and delivered", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		resp, err := f.svc.HandleText(ctx, textRequest("m1", "what are your opening hours?"))
		require.NoError(t, err)
		assert.Equal(t, string(resolver.SourceExact), resp.Source)
		assert.Equal(t, "We are open 9 to 5 on weekdays.", resp.Text)

		delivered := f.delivery.all()
		require.Len(t, delivered, 1)
		assert.Equal(t, "u1", delivered[0].UserId)
		assert.Equal(t, "text", delivered[0].Origin)
		assert.Equal(t, "what are your opening hours?", delivered[0].Query)
		assert.Equal(t, "m1", delivered[0].Response.RequestId)
	})

	t.Run("redelivered message is skipped", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		_, err := f.svc.HandleText(ctx, textRequest("m1", "what are your opening hours?"))
		require.NoError(t, err)
		resp, err := f.svc.HandleText(ctx, textRequest("m1", "what are your opening hours?"))
		require.NoError(t, err)

		assert.True(t, resp.Duplicate)
		assert.Empty(t, resp.Text)
		assert.Len(t, f.delivery.all(), 1)
	})

	t.Run("unknown question falls back to the default answer", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		resp, err := f.svc.HandleText(ctx, textRequest("m1", "zzz qqq"))
		require.NoError(t, err)
		assert.Equal(t, string(resolver.SourceDefault), resp.Source)
		assert.Contains(t, resp.Text, "zzz qqq")
	})

	t.Run("mode command switches the text channel", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		resp, err := f.svc.HandleText(ctx, textRequest("m1", "/mode text llm"))
		require.NoError(t, err)
		assert.Equal(t, "mode", resp.Command)
		assert.Equal(t, store.ModeLLM, f.sessions.GetMode("u1", store.ChannelText))
		assert.Equal(t, store.ModeKB, f.sessions.GetMode("u1", store.ChannelVoice))

		// llm-first without a provider skips the knowledge stages
		resp, err = f.svc.HandleText(ctx, textRequest("m2", "what are your opening hours?"))
		require.NoError(t, err)
		assert.Equal(t, string(resolver.SourceDefault), resp.Source)
	})

	t.Run("malformed command gets an error reply", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		resp, err := f.svc.HandleText(ctx, textRequest("m1", "/mode sideways"))
		require.NoError(t, err)
		assert.Equal(t, "error", resp.Command)
		assert.NotEmpty(t, resp.Text)
		assert.Len(t, f.delivery.all(), 1)
	})

	t.Run("add command teaches a new answer", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		resp, err := f.svc.HandleText(ctx, textRequest("m1", "/add Do you deliver? | Yes, within the city."))
		require.NoError(t, err)
		assert.Equal(t, "add", resp.Command)

		resp, err = f.svc.HandleText(ctx, textRequest("m2", "do you deliver?"))
		require.NoError(t, err)
		assert.Equal(t, string(resolver.SourceExact), resp.Source)
		assert.Equal(t, "Yes, within the city.", resp.Text)
	})

	t.Run("status reports modes", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		resp, err := f.svc.HandleText(ctx, textRequest("m1", "/status"))
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "Voice mode: kb")
		assert.Contains(t, resp.Text, "LLM answers are disabled")
	})

	t.Run("refused admission delivers an apology", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)
		require.NoError(t, f.requests.Shutdown(ctx))

		resp, err := f.svc.HandleText(ctx, textRequest("m1", "what are your opening hours?"))
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, governor.ErrShuttingDown)

		delivered := f.delivery.all()
		require.Len(t, delivered, 1)
		assert.Equal(t, serverutils.ApologyMessage, delivered[0].Response.Text)
	})
}

func TestChatService_HandleVoice(t *testing.T) {
	ctx := context.Background()

	t.Run("without speech backend", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		_, err := f.svc.HandleVoice(ctx, "v1", "u1", []byte("audio"), "ogg")
		assert.ErrorIs(t, err, speech.ErrNotConfigured)
		assert.False(t, f.svc.SpeechEnabled())
	})

	t.Run("transcript is resolved and synthesized", func(t *testing.T) {
		f := newChatFixture(t, &fakeSTT{transcript: "What are your opening hours?"}, &fakeTTS{audio: []byte("mp3")})

		resp, err := f.svc.HandleVoice(ctx, "v1", "u1", []byte("audio"), "ogg")
		require.NoError(t, err)
		assert.Equal(t, "What are your opening hours?", resp.Transcript)
		assert.Equal(t, string(resolver.SourceExact), resp.Source)
		assert.Equal(t, []byte("mp3"), resp.Audio)

		delivered := f.delivery.all()
		require.Len(t, delivered, 1)
		assert.Equal(t, "voice", delivered[0].Origin)
		assert.Equal(t, "What are your opening hours?", delivered[0].Query)
	})

	t.Run("synthesis failure still answers with text", func(t *testing.T) {
		f := newChatFixture(t, &fakeSTT{transcript: "What are your opening hours?"}, &fakeTTS{err: errors.New("tts down")})

		resp, err := f.svc.HandleVoice(ctx, "v1", "u1", []byte("audio"), "ogg")
		require.NoError(t, err)
		assert.Nil(t, resp.Audio)
		assert.Equal(t, "We are open 9 to 5 on weekdays.", resp.Text)
	})

	t.Run("empty transcript is an error", func(t *testing.T) {
		f := newChatFixture(t, &fakeSTT{err: speech.ErrEmptyTranscript}, nil)

		_, err := f.svc.HandleVoice(ctx, "v1", "u1", []byte("audio"), "ogg")
		assert.ErrorIs(t, err, speech.ErrEmptyTranscript)
		assert.Empty(t, f.delivery.all())
	})

	t.Run("missing audio fails validation", func(t *testing.T) {
		f := newChatFixture(t, &fakeSTT{transcript: "hi"}, nil)

		_, err := f.svc.HandleVoice(ctx, "v1", "u1", nil, "ogg")
		var ve *dto.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestChatService_AttachDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("plain text becomes pending context", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		resp, err := f.svc.AttachDocument(ctx, "u1", "notes.txt", "text/plain", []byte("Parking is free after six."))
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", resp.FileName)
		assert.False(t, resp.Truncated)

		pc, ok := f.sessions.PendingContext("u1")
		require.True(t, ok)
		assert.Equal(t, "Parking is free after six.", pc.Text)

		sess := f.svc.Session(ctx, "u1")
		require.NotNil(t, sess.PendingContext)
		assert.Equal(t, "notes.txt", *sess.PendingContext)

		_, err = f.svc.HandleText(ctx, textRequest("m1", "/forget"))
		require.NoError(t, err)
		_, ok = f.sessions.PendingContext("u1")
		assert.False(t, ok)
	})

	t.Run("file name is used when the content type is generic", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		_, err := f.svc.AttachDocument(ctx, "u1", "guide.md", "application/octet-stream", []byte("# Guide\n\nUse the side door."))
		require.NoError(t, err)
		pc, ok := f.sessions.PendingContext("u1")
		require.True(t, ok)
		assert.Contains(t, pc.Text, "Use the side door.")
	})

	t.Run("unsupported type fails validation", func(t *testing.T) {
		f := newChatFixture(t, nil, nil)

		_, err := f.svc.AttachDocument(ctx, "u1", "photo.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})
		var ve *dto.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestChatService_SetMode(t *testing.T) {
	f := newChatFixture(t, nil, nil)

	resp, err := f.svc.SetMode(context.Background(), "u1", &dto.ModeRequest{Channel: "voice", Mode: "llm"})
	require.NoError(t, err)
	assert.Equal(t, "llm", resp.VoiceMode)
	assert.Equal(t, "kb", resp.TextMode)

	_, err = f.svc.SetMode(context.Background(), "u1", &dto.ModeRequest{Channel: "fax", Mode: "llm"})
	var ve *dto.ValidationError
	assert.ErrorAs(t, err, &ve)
}
