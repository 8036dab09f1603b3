package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/internal/config"
	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/logger"
	"github.com/IvanKem/clever-document-assistant-ru/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot API refuses downloads above 20 MB.
const maxDownloadBytes = 20 << 20

// Bot is the long-polling Telegram front end.
type Bot struct {
	api        *tgbotapi.BotAPI
	handler    *Handler
	queue      *Queue
	logger     logger.ILogger
	httpClient *http.Client
}

// Ensure Bot implements Messenger
var _ Messenger = &Bot{}

func NewBot(cfg *config.Config, svc service.IAssistantService, log logger.ILogger) (*Bot, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is not set")
	}

	endpoint := tgbotapi.APIEndpoint
	if cfg.Telegram.APIEndpoint != "" {
		endpoint = cfg.Telegram.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Telegram.BotToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}

	b := &Bot{
		api:        api,
		queue:      NewQueue(16, 32, 5*time.Minute, log),
		logger:     log,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	b.handler = NewHandler(svc, b, log, cfg.Session.QuotaBytes, cfg.SingleShot())

	log.Info("TELEGRAM", "Bot authorized", map[string]interface{}{"username": api.Self.UserName})
	return b, nil
}

// Run polls updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	defer b.queue.Close()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			in, ok := toIncoming(update)
			if !ok {
				continue
			}
			b.dispatch(ctx, in)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, in Incoming) {
	err := b.queue.Submit(in.UserID, func() {
		b.handler.Handle(ctx, in)
	})
	if errors.Is(err, ErrQueueFull) {
		_ = b.SendText(in.ChatID, queueFullText)
	}
}

func (b *Bot) registerCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Начало работы с ботом"},
		tgbotapi.BotCommand{Command: "help", Description: "Справка по работе с ботом"},
		tgbotapi.BotCommand{Command: "ask", Description: "Отправить запрос к модели"},
		tgbotapi.BotCommand{Command: "status", Description: "Что сейчас сохранено"},
		tgbotapi.BotCommand{Command: "restart", Description: "Сброс всех данных"},
	)
	if _, err := b.api.Request(cmds); err != nil {
		b.logger.Warn("TELEGRAM", "Failed to register bot commands", map[string]interface{}{"error": err.Error()})
	}
}

func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) SendPhoto(chatID int64, image []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "answer.png", Bytes: image})
	photo.Caption = caption
	_, err := b.api.Send(photo)
	return err
}

func (b *Bot) Download(ctx context.Context, file FileRef) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(file.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", file.Name, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}

// toIncoming flattens an update. Photos keep only the largest size and are named after their id.
func toIncoming(update tgbotapi.Update) (Incoming, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return Incoming{}, false
	}

	in := Incoming{
		UserID: msg.From.ID,
		ChatID: msg.Chat.ID,
	}

	switch {
	case msg.IsCommand():
		in.Command = msg.Command()
		in.Args = msg.CommandArguments()
	case msg.Document != nil:
		in.File = &FileRef{ID: msg.Document.FileID, Name: msg.Document.FileName, Size: int64(msg.Document.FileSize)}
		in.Text = msg.Caption
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		in.File = &FileRef{ID: largest.FileID, Name: "photo_" + largest.FileUniqueID + ".jpg", Size: int64(largest.FileSize)}
		in.Text = msg.Caption
	default:
		in.Text = msg.Text
	}

	return in, true
}
