package bootstrap

import (
	"context"
	"fmt"
	"time"

	"preset-teaching-be/internal/config"
	"preset-teaching-be/internal/controller"
	"preset-teaching-be/internal/handler"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/internal/repository/memory"
	"preset-teaching-be/internal/repository/unitofwork"
	"preset-teaching-be/internal/service"
	"preset-teaching-be/internal/websocket"
	"preset-teaching-be/pkg/llm/factory"
	"preset-teaching-be/pkg/preset"
	"preset-teaching-be/pkg/teaching"

	pktNats "preset-teaching-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger *logger.ZapLogger

	PresetController    controller.IPresetController
	TeachingController  controller.ITeachingController
	PresetStreamHandler *handler.PresetStreamHandler

	TeachingService service.ITeachingService
	ConsumerService service.IConsumerService
	TurnListener    *service.TurnListener
	WebSocketHub    *websocket.Hub

	queue   *teaching.Queue
	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
	cancel  context.CancelFunc
}

func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger *logger.ZapLogger) (*Container, error) {
	uowFactory := unitofwork.NewRepositoryFactory(db)
	auditLogger := logger.NewIsolatedLogger(cfg.App.AuditLogPath)

	// Generator
	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  llmBaseURL(cfg),
		APIKey:   cfg.Keys.HuggingFace,
		Timeout:  cfg.Teaching.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})

	model := cfg.Teaching.Model
	if model == "" {
		model = cfg.Ai.LLMModel
	}
	protocol := teaching.NewProtocol(llmProvider, preset.NewResolver(), teaching.ProtocolConfig{
		MaxAttempts: cfg.Teaching.MaxAttempts,
		Model:       model,
		MaxTokens:   cfg.Teaching.MaxTokens,
		Temperature: cfg.Teaching.Temperature,
	})
	pipeline := teaching.NewPipeline(protocol, preset.DefaultIndexOptions())
	queue := teaching.NewQueue(sysLogger)

	// In-process event bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	publisherService := service.NewPublisherService(service.TopicPresetUpdated, pubSub)

	// NATS is optional; nil pointers must not leak into interfaces.
	var (
		eventPublisher service.EventPublisher
		natsPub        *pktNats.Publisher
		natsSub        *pktNats.Subscriber
	)
	if p, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger); err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS publisher unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		natsPub = p
		eventPublisher = p
	}
	if s, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger); err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS subscriber unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		natsSub = s
	}

	rdb := connectRedis(cfg.App.RedisURL, sysLogger)
	hub := websocket.NewHub(rdb, logger.NewIsolatedLogger("logs/websocket.log"))
	cache := memory.NewPresetCache(10 * time.Minute)

	teachingService := service.NewTeachingService(uowFactory, pipeline, queue, publisherService, cfg.Teaching, sysLogger, auditLogger)
	presetService := service.NewPresetService(uowFactory, cache, pipeline, queue, publisherService, sysLogger)
	consumerService := service.NewConsumerService(pubSub, service.TopicPresetUpdated, cache, hub, eventPublisher, sysLogger)

	var turnListener *service.TurnListener
	if natsSub != nil {
		turnListener = service.NewTurnListener(natsSub, teachingService, sysLogger)
	}

	return &Container{
		Logger:              sysLogger,
		PresetController:    controller.NewPresetController(presetService),
		TeachingController:  controller.NewTeachingController(teachingService),
		PresetStreamHandler: handler.NewPresetStreamHandler(hub, teachingService, sysLogger),
		TeachingService:     teachingService,
		ConsumerService:     consumerService,
		TurnListener:        turnListener,
		WebSocketHub:        hub,
		queue:               queue,
		pubSub:              pubSub,
		natsPub:             natsPub,
		natsSub:             natsSub,
		rdb:                 rdb,
	}, nil
}

// Start launches the background workers.
func (c *Container) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	go c.WebSocketHub.Run(ctx)
	c.TeachingService.Start(ctx)
	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	if c.TurnListener != nil {
		if err := c.TurnListener.Start(ctx); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Turn listener not started", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// Stop drains the round queue before closing the buses.
func (c *Container) Stop() {
	c.TeachingService.Stop()
	if c.cancel != nil {
		c.cancel()
	}
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	_ = c.pubSub.Close()
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.Logger.Sync()
}

func llmBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "huggingface" || cfg.Ai.LLMProvider == "hf" {
		return cfg.Ai.HuggingFaceBaseURL
	}
	return cfg.Ai.OllamaBaseURL
}

func connectRedis(url string, log logger.ILogger) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("BOOTSTRAP", "Redis unavailable, websocket fan-out stays local", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	return rdb
}
