package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/IvanKem/clever-document-assistant-ru/internal/dto"
	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/logger"
	"github.com/IvanKem/clever-document-assistant-ru/internal/service"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/response"
)

// Incoming is a chat message reduced to what the assistant needs.
type Incoming struct {
	UserID  int64
	ChatID  int64
	Text    string
	Command string
	Args    string
	File    *FileRef
}

type FileRef struct {
	ID   string
	Name string
	Size int64
}

// Messenger is the outbound half of the chat transport.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, image []byte, caption string) error
	Download(ctx context.Context, file FileRef) ([]byte, error)
}

type Handler struct {
	service    service.IAssistantService
	messenger  Messenger
	logger     logger.ILogger
	quotaBytes int64
	singleShot bool
}

func NewHandler(svc service.IAssistantService, messenger Messenger, log logger.ILogger, quotaBytes int64, singleShot bool) *Handler {
	return &Handler{
		service:    svc,
		messenger:  messenger,
		logger:     log,
		quotaBytes: quotaBytes,
		singleShot: singleShot,
	}
}

// Handle processes one message. Callers serialize calls per user.
func (h *Handler) Handle(ctx context.Context, in Incoming) {
	userId := strconv.FormatInt(in.UserID, 10)

	switch {
	case in.Command != "":
		h.handleCommand(ctx, userId, in)
	case in.File != nil:
		h.handleFile(ctx, userId, in)
	case strings.TrimSpace(in.Text) != "":
		h.handleText(ctx, userId, in.ChatID, in.Text)
	}
}

func (h *Handler) handleCommand(ctx context.Context, userId string, in Incoming) {
	h.logger.Info("TELEGRAM", "Command received", map[string]interface{}{
		"user_id": userId,
		"command": in.Command,
	})

	switch in.Command {
	case "start":
		h.send(in.ChatID, welcomeText)
	case "help":
		h.send(in.ChatID, formatHelp(h.quotaBytes))
	case "restart":
		res, err := h.service.Restart(ctx, userId)
		if err != nil {
			h.sendError(in.ChatID, userId, err)
			return
		}
		h.send(in.ChatID, res.Message)
	case "status":
		res, err := h.service.Status(ctx, userId)
		if err != nil {
			h.sendError(in.ChatID, userId, err)
			return
		}
		h.send(in.ChatID, formatStatus(res))
	case "ask":
		h.ask(ctx, userId, in.ChatID, strings.TrimSpace(in.Args))
	default:
		h.send(in.ChatID, unknownCommandText)
	}
}

func (h *Handler) ask(ctx context.Context, userId string, chatID int64, question string) {
	if question == "" {
		status, err := h.service.Status(ctx, userId)
		if err == nil && status.Texts == 0 && len(status.Files) == 0 && status.State != "PROCESSING" {
			h.send(chatID, emptySessionText)
			return
		}
	}

	h.send(chatID, response.ProcessingMessage)

	answer, err := h.service.Ask(ctx, userId, question)
	if err != nil {
		if errors.Is(err, service.ErrEmptySession) {
			h.send(chatID, emptySessionText)
			return
		}
		h.sendError(chatID, userId, err)
		return
	}
	h.reply(chatID, userId, answer)
}

func (h *Handler) handleText(ctx context.Context, userId string, chatID int64, text string) {
	if h.singleShot {
		h.ask(ctx, userId, chatID, text)
		return
	}

	res, err := h.service.SubmitText(ctx, userId, text)
	if err != nil {
		h.sendError(chatID, userId, err)
		return
	}
	h.send(chatID, res.Message)
}

func (h *Handler) handleFile(ctx context.Context, userId string, in Incoming) {
	data, err := h.messenger.Download(ctx, *in.File)
	if err != nil {
		h.logger.Error("TELEGRAM", "File download failed", map[string]interface{}{
			"user_id": userId,
			"file":    in.File.Name,
			"error":   err.Error(),
		})
		h.send(in.ChatID, downloadFailedText)
		return
	}

	res, err := h.service.IngestFile(ctx, userId, in.File.Name, data)
	if err != nil {
		h.sendError(in.ChatID, userId, err)
		return
	}
	h.send(in.ChatID, res.Message)

	// A caption sent with the file counts as a text message.
	if caption := strings.TrimSpace(in.Text); caption != "" {
		h.handleText(ctx, userId, in.ChatID, caption)
	}
}

func (h *Handler) reply(chatID int64, userId string, answer *dto.AnswerResponse) {
	if len(answer.Image) == 0 {
		h.sendAnswer(chatID, userId, answer.Text)
		return
	}

	caption := answer.Text
	rest := ""
	if utf8.RuneCountInString(caption) > maxCaptionChars {
		caption, rest = "", answer.Text
	}

	if err := h.messenger.SendPhoto(chatID, answer.Image, caption); err != nil {
		h.logger.Warn("TELEGRAM", "Photo reply failed, falling back to text", map[string]interface{}{
			"user_id": userId,
			"error":   err.Error(),
		})
		h.sendAnswer(chatID, userId, answer.Text)
		return
	}
	if rest != "" {
		h.sendAnswer(chatID, userId, rest)
	}
}

// sendAnswer delivers model output; if Telegram refuses it the user still gets a notice.
func (h *Handler) sendAnswer(chatID int64, userId, text string) {
	if err := h.messenger.SendText(chatID, text); err != nil {
		h.logger.Error("TELEGRAM", "Answer delivery failed", map[string]interface{}{
			"user_id": userId,
			"kind":    "send_failed",
			"error":   err.Error(),
		})
		h.send(chatID, sendFailedText)
	}
}

func (h *Handler) sendError(chatID int64, userId string, err error) {
	h.logger.Warn("TELEGRAM", "Request failed", map[string]interface{}{
		"user_id": userId,
		"kind":    response.ErrorKind(err),
		"error":   err.Error(),
	})
	h.send(chatID, response.UserMessage(err))
}

func (h *Handler) send(chatID int64, text string) {
	if err := h.messenger.SendText(chatID, text); err != nil {
		h.logger.Error("TELEGRAM", "Send failed", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}
