package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"

	"kb-assistant-be/internal/config"
	"kb-assistant-be/internal/controller"
	"kb-assistant-be/internal/handler"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/pkg/serverutils"
	"kb-assistant-be/internal/repository/implementation"
	"kb-assistant-be/internal/repository/memory"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/internal/service"
	"kb-assistant-be/internal/websocket"
	"kb-assistant-be/pkg/dedup"
	"kb-assistant-be/pkg/extractor"
	"kb-assistant-be/pkg/governor"
	"kb-assistant-be/pkg/llm"
	"kb-assistant-be/pkg/llm/factory"
	"kb-assistant-be/pkg/match"
	pktNats "kb-assistant-be/pkg/nats"
	"kb-assistant-be/pkg/resolver"
	"kb-assistant-be/pkg/session"
	"kb-assistant-be/pkg/speech"
	speechOpenAI "kb-assistant-be/pkg/speech/openai"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController      controller.IChatController
	KnowledgeController controller.IKnowledgeController
	HealthController    controller.IHealthController
	ChatSocketHandler   *handler.ChatSocketHandler
	Auth                fiber.Handler

	// Background Services (started by Start)
	DeliveryService service.IDeliveryService
	InboundService  service.IInboundService
	WebSocketHub    *websocket.Hub

	Requests   *governor.Governor
	Operations *governor.Governor
	Logger     logger.ILogger

	stopInbound func()
	closers     []func() error
}

// NewContainer wires every dependency. db may be nil, in which case knowledge lives in memory. ctx bounds the
// background work started later by Start.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	c := &Container{}

	// 1. Core Facades
	sysLogger := logger.New(logger.Options{
		FilePath: cfg.App.LogFilePath,
		Level:    cfg.App.LogLevel,
		Console:  true,
		JSON:     cfg.IsProduction(),
	})
	c.Logger = sysLogger
	// Sync on a console sink fails on some platforms; there is nothing to do about it at exit.
	c.closers = append(c.closers, func() error { _ = sysLogger.Sync(); return nil })

	var uowFactory unitofwork.RepositoryFactory
	var knowledgeStore resolver.KnowledgeStore
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
		knowledgeStore = implementation.NewKnowledgeRepository(db)
		log.Printf("[INFO] Knowledge store: Postgres")
	} else {
		memRepo := memory.NewKnowledgeRepository()
		uowFactory = unitofwork.NewMemoryRepositoryFactory(memRepo)
		knowledgeStore = memRepo
		log.Printf("[WARN] Knowledge store: in-memory (DB_CONNECTION_STRING not set), knowledge is lost on restart")
	}

	// 2. Governors. Whole resolutions and the collaborator calls inside them are admitted separately so a full
	// request pool can never starve its own stages.
	c.Requests = governor.New(governor.Config{
		Name:     "requests",
		Capacity: cfg.Governor.RequestCapacity,
		MaxQueue: cfg.Governor.MaxQueue,
	}, sysLogger)
	c.Operations = governor.New(governor.Config{
		Name:     "operations",
		Capacity: cfg.Governor.OperationCapacity,
		MaxQueue: cfg.Governor.MaxQueue,
	}, sysLogger)

	// 3. Infrastructure
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		c.closers = append(c.closers, rdb.Close)
	}

	var natsConn *nats.Conn
	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsEnabled {
		nc, js, err := pktNats.Connect(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] NATS unavailable, inbound bridge and events disabled: %v", err)
		} else {
			natsConn = nc
			natsPub = pktNats.NewPublisher(js)
			natsSub = pktNats.NewSubscriber(js)
			c.closers = append(c.closers, func() error { return natsConn.Drain() })
		}
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, pubSub.Close)

	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	c.WebSocketHub = websocket.NewHub(rdb, cfg.App.InstanceID, wsLogger)

	// 4. Collaborators
	llmProvider, err := newLLMProvider(cfg)
	if err != nil {
		return nil, err
	}

	var stt speech.SpeechToText
	var tts speech.TextToSpeech
	if cfg.Speech.Enabled {
		client := speechOpenAI.NewClient(speechOpenAI.Config{
			APIKey:          cfg.Speech.APIKey,
			BaseURL:         cfg.Speech.BaseURL,
			TranscribeModel: cfg.Speech.TranscribeModel,
			SynthesizeModel: cfg.Speech.SynthesizeModel,
			Voice:           cfg.Speech.Voice,
			MaxChars:        cfg.Speech.MaxChars,
		})
		stt, tts = client, client
		log.Printf("[INFO] Speech enabled (%s / %s)", cfg.Speech.TranscribeModel, cfg.Speech.SynthesizeModel)
	} else {
		log.Printf("[INFO] Speech disabled, voice requests will be refused")
	}

	tables, err := resolver.LoadTables(cfg.Resolver.TablesPath)
	if err != nil {
		return nil, err
	}

	var guard dedup.Guard
	if cfg.Session.DedupBackend == "redis" && rdb != nil {
		guard = dedup.NewRedisGuard(rdb, cfg.Session.DedupTTL, sysLogger)
		log.Printf("[INFO] Dedup guard: Redis (ttl %s)", cfg.Session.DedupTTL)
	} else {
		guard = dedup.NewMemoryGuard(cfg.Session.DedupCapacity)
	}

	// 5. Services
	var eventPublisher service.EventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
	}

	answerResolver := resolver.New(
		knowledgeStore,
		llmProvider,
		c.Operations,
		tables,
		match.NewScorer(match.DefaultWeights, cfg.Resolver.Threshold),
		resolver.Config{
			RecentLimit:   cfg.Resolver.RecentLimit,
			SnippetLimit:  cfg.Resolver.SnippetLimit,
			ChunkSize:     cfg.Session.ContextChunkSize,
			LookupTimeout: cfg.Governor.LookupTimeout,
			LLMTimeout:    cfg.Governor.LLMTimeout,
		},
		sysLogger,
	)

	knowledgeService := service.NewKnowledgeService(uowFactory, eventPublisher, sysLogger)
	c.DeliveryService = service.NewDeliveryService(pubSub, c.WebSocketHub, eventPublisher, sysLogger)

	chatService := service.NewChatService(service.ChatDeps{
		Requests:   c.Requests,
		Operations: c.Operations,
		Resolver:   answerResolver,
		Sessions:   session.NewModeStore(memory.NewSessionRepository()),
		Dedup:      guard,
		Knowledge:  knowledgeService,
		Extractor:  extractor.New(),
		STT:        stt,
		TTS:        tts,
		Delivery:   c.DeliveryService,
		Logger:     sysLogger,
	}, service.ChatConfig{
		RequestTimeout:    cfg.Governor.RequestTimeout,
		TranscribeTimeout: cfg.Governor.TranscribeTimeout,
		SynthesizeTimeout: cfg.Governor.SynthesizeTimeout,
		PendingContextTTL: cfg.Session.PendingContextTTL,
		MaxContextChars:   cfg.Session.MaxContextChars,
		MaxDocumentBytes:  cfg.Session.MaxDocumentBytes,
	})

	if natsSub != nil {
		c.InboundService = service.NewInboundService(natsSub, chatService, cfg.Governor.RequestCapacity+cfg.Governor.MaxQueue, sysLogger)
	}

	// 6. Controllers
	c.Auth = serverutils.NewJwtMiddleware(cfg.App.JwtSecret)
	c.ChatController = controller.NewChatController(chatService)
	c.KnowledgeController = controller.NewKnowledgeController(knowledgeService)
	c.HealthController = controller.NewHealthController(cfg.App.InstanceID, c.Requests, c.Operations)
	c.ChatSocketHandler = handler.NewChatSocketHandler(ctx, chatService, c.WebSocketHub, cfg.App.JwtSecret, wsLogger)

	return c, nil
}

// Start launches the hub, the delivery consumer and, when NATS is up, the inbound bridge.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.DeliveryService.Consume(ctx); err != nil {
		return fmt.Errorf("start delivery consumer: %w", err)
	}

	if c.InboundService != nil {
		stop, err := c.InboundService.Start(ctx)
		if err != nil {
			return fmt.Errorf("start inbound bridge: %w", err)
		}
		c.stopInbound = stop
	}
	return nil
}

// Shutdown stops taking inbound work, drains the request governor and then the operations governor. It returns
// governor.ErrDrainTimeout when ctx ends first.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.stopInbound != nil {
		c.stopInbound()
	}

	var errs []error
	if err := c.Requests.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.Operations.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Printf("[WARN] Close failed: %v", err)
		}
	}
}

func newLLMProvider(cfg *config.Config) (llm.LLMProvider, error) {
	baseURL := cfg.Ai.OllamaBaseURL
	if cfg.Ai.LLMProvider == "openai" {
		baseURL = cfg.Ai.OpenAIBaseURL
	}

	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  baseURL,
		APIKey:   cfg.Ai.OpenAIAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	if llmProvider == nil {
		log.Printf("[INFO] LLM provider disabled, unresolved queries go straight to the default answer")
	} else {
		log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	}
	return llmProvider, nil
}
