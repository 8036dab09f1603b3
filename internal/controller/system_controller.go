package controller

import (
	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/serverutils"
	"github.com/IvanKem/clever-document-assistant-ru/internal/repository/memory"
	"github.com/IvanKem/clever-document-assistant-ru/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISystemController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type systemController struct {
	consumer     service.IConsumerService
	sessionRepo  *memory.SessionRepository
	providerName string
}

func NewSystemController(consumer service.IConsumerService, sessionRepo *memory.SessionRepository, providerName string) ISystemController {
	return &systemController{
		consumer:     consumer,
		sessionRepo:  sessionRepo,
		providerName: providerName,
	}
}

func (c *systemController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
	r.Get("/stats", c.Stats)
}

func (c *systemController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("OK", fiber.Map{
		"provider":        c.providerName,
		"active_sessions": c.sessionRepo.Len(),
	}))
}

func (c *systemController) Stats(ctx *fiber.Ctx) error {
	stats := c.consumer.Stats()
	stats.ActiveSessions = c.sessionRepo.Len()
	return ctx.JSON(serverutils.SuccessResponse("Success get usage stats", stats))
}
