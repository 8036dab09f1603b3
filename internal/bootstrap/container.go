package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/internal/config"
	"github.com/IvanKem/clever-document-assistant-ru/internal/controller"
	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/logger"
	"github.com/IvanKem/clever-document-assistant-ru/internal/repository/memory"
	"github.com/IvanKem/clever-document-assistant-ru/internal/service"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/document"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/llm/factory"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/prompt"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/quota"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/response"

	pktNats "github.com/IvanKem/clever-document-assistant-ru/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	Config *config.Config
	Logger logger.ILogger

	// Core
	SessionRepo *memory.SessionRepository
	Provider    llm.InferenceProvider

	// Services
	AssistantService service.IAssistantService
	PublisherService service.IPublisherService
	ConsumerService  service.IConsumerService

	// Controllers
	AssistantController controller.IAssistantController
	SystemController    controller.ISystemController

	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)

	// NATS is optional; without it events stay in-process.
	var sink service.EventSink
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		p, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("EVENTS", "Failed to connect to NATS Publisher", map[string]interface{}{
				"url":   cfg.App.NatsURL,
				"error": err.Error(),
			})
		} else {
			natsPub = p
			sink = p
		}
	}

	// 3. Inference Provider based on Config
	provider, err := factory.NewInferenceProvider(factory.Settings{
		Provider:    cfg.Inference.Provider,
		URL:         cfg.Inference.URL,
		Model:       cfg.Inference.Model,
		APIKey:      cfg.Inference.APIKey,
		Timeout:     cfg.Inference.Timeout,
		Temperature: cfg.Inference.Temperature,
		MaxTokens:   cfg.Inference.MaxTokens,
	})
	if err != nil {
		if natsPub != nil {
			natsPub.Close()
		}
		_ = pubSub.Close()
		return nil, fmt.Errorf("init inference provider: %w", err)
	}
	log.Printf("[INFO] Using Inference Provider: %s (%s)", provider.Name(), cfg.Inference.URL)

	// 4. Session pipeline
	guard := quota.NewGuard(cfg.Session.QuotaBytes)
	sessionRepo := memory.NewSessionRepository(cfg.Session.IdleTTL, guard)
	assembler := prompt.NewAssembler(document.NewFitzRasterizer(cfg.Session.PDFDPI), cfg.Session.RequireDocument)
	dispatcher := response.NewDispatcher(cfg.Session.MaxChars)

	// 5. Services
	publisherService := service.NewPublisherService(cfg.App.EventsTopic, pubSub, sink, sysLogger)
	consumerService := service.NewConsumerService(pubSub, cfg.App.EventsTopic, sysLogger)

	assistantService := service.NewAssistantService(
		sessionRepo,
		guard,
		assembler,
		provider,
		dispatcher,
		publisherService,
		sysLogger,
		service.AssistantOptions{SingleShot: cfg.SingleShot()},
	)

	// 6. Controllers
	return &Container{
		Config:      cfg,
		Logger:      sysLogger,
		SessionRepo: sessionRepo,
		Provider:    provider,

		AssistantService: assistantService,
		PublisherService: publisherService,
		ConsumerService:  consumerService,

		AssistantController: controller.NewAssistantController(assistantService),
		SystemController:    controller.NewSystemController(consumerService, sessionRepo, provider.Name()),

		pubSub:  pubSub,
		natsPub: natsPub,
	}, nil
}

// PingBackend probes the inference backend when it supports it.
func (c *Container) PingBackend(ctx context.Context) error {
	pinger, ok := c.Provider.(llm.Pinger)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return pinger.Ping(ctx)
}

// CheckBackend runs PingBackend and only logs the result.
func (c *Container) CheckBackend(ctx context.Context) {
	if err := c.PingBackend(ctx); err != nil {
		c.Logger.Warn("INFERENCE", "Inference backend is not reachable", map[string]interface{}{
			"provider": c.Provider.Name(),
			"url":      c.Config.Inference.URL,
			"error":    err.Error(),
		})
		return
	}
	c.Logger.Info("INFERENCE", "Inference backend check finished", map[string]interface{}{
		"provider": c.Provider.Name(),
	})
}

// Close releases the event buses and flushes the logger.
func (c *Container) Close() {
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.pubSub != nil {
		_ = c.pubSub.Close()
	}
	_ = c.Logger.Sync()
}
