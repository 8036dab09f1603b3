package controller

import (
	"io"
	"strings"

	"github.com/IvanKem/clever-document-assistant-ru/internal/dto"
	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/serverutils"
	"github.com/IvanKem/clever-document-assistant-ru/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxUserIdLength = 128

type IAssistantController interface {
	RegisterRoutes(r fiber.Router)
	SubmitText(ctx *fiber.Ctx) error
	UploadFile(ctx *fiber.Ctx) error
	Ask(ctx *fiber.Ctx) error
	Restart(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type assistantController struct {
	service service.IAssistantService
}

func NewAssistantController(service service.IAssistantService) IAssistantController {
	return &assistantController{service: service}
}

func (c *assistantController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1/:userId")
	h.Post("/text", c.SubmitText)
	h.Post("/file", c.UploadFile)
	h.Post("/ask", c.Ask)
	h.Post("/restart", c.Restart)
	h.Get("/status", c.Status)
}

func (c *assistantController) SubmitText(ctx *fiber.Ctx) error {
	userId, err := userIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.SubmitTextRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitText(ctx.UserContext(), userId, req.Text)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse(res.Message, res))
}

func (c *assistantController) UploadFile(ctx *fiber.Ctx) error {
	userId, err := userIdParam(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Multipart field 'file' is required")
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	res, err := c.service.IngestFile(ctx.UserContext(), userId, fh.Filename, data)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse(res.Message, res))
}

func (c *assistantController) Ask(ctx *fiber.Ctx) error {
	userId, err := userIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.AskRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Ask(ctx.UserContext(), userId, req.Question)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success ask", res))
}

func (c *assistantController) Restart(ctx *fiber.Ctx) error {
	userId, err := userIdParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Restart(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse(res.Message, res))
}

func (c *assistantController) Status(ctx *fiber.Ctx) error {
	userId, err := userIdParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Status(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session status", res))
}

func userIdParam(ctx *fiber.Ctx) (string, error) {
	userId := strings.TrimSpace(ctx.Params("userId"))
	if userId == "" || len(userId) > maxUserIdLength {
		return "", fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
	}
	return userId, nil
}
