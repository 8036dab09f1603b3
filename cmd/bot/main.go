package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/IvanKem/clever-document-assistant-ru/internal/bootstrap"
	"github.com/IvanKem/clever-document-assistant-ru/internal/config"
	"github.com/IvanKem/clever-document-assistant-ru/internal/telegram"
	"github.com/IvanKem/clever-document-assistant-ru/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Printf("Background Consumer Error: %v", err)
	}
	go container.CheckBackend(ctx)

	// 5. Initialize Bot
	bot, err := telegram.NewBot(cfg, container.AssistantService, container.Logger)
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// 6. Run Bot
	log.Println("[INFO] Bot started, waiting for updates")
	if err := bot.Run(ctx); err != nil {
		log.Printf("Bot stopped: %v", err)
	}
}
