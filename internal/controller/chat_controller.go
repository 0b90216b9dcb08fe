package controller

import (
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/serverutils"
	"kb-assistant-be/internal/service"
	"kb-assistant-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Text(ctx *fiber.Ctx) error
	Voice(ctx *fiber.Ctx) error
	Document(ctx *fiber.Ctx) error
	Session(ctx *fiber.Ctx) error
	SetMode(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chat/v1")
	h.Use(auth)
	h.Post("/text", c.Text)
	h.Post("/voice", c.Voice)
	h.Post("/document", c.Document)
	h.Get("/session", c.Session)
	h.Put("/session/mode", c.SetMode)
}

func (c *chatController) Text(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.HandleText(ctx.UserContext(), store.NewRequest(req.MessageId, userId, store.ChannelText, req.Text, time.Now()))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer message", res))
}

// Voice accepts either multipart form data (file field "audio") or a JSON body with base64 audio.
func (c *chatController) Voice(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	var req dto.VoiceRequest
	if strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		file, err := ctx.FormFile("audio")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Missing audio file")
		}
		audio, err := readUpload(file)
		if err != nil {
			return err
		}
		req.MessageId = ctx.FormValue("message_id")
		req.Audio = audio
		req.Format = ctx.FormValue("format", strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	} else if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.HandleVoice(ctx.UserContext(), req.MessageId, userId, req.Audio, req.Format)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer voice message", res))
}

func (c *chatController) Document(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	file, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing file")
	}
	data, err := readUpload(file)
	if err != nil {
		return err
	}

	res, err := c.service.AttachDocument(ctx.UserContext(), userId, filepath.Base(file.Filename), file.Header.Get(fiber.HeaderContentType), data)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success attach document", res))
}

func (c *chatController) Session(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)
	return ctx.JSON(serverutils.SuccessResponse("Success get session", c.service.Session(ctx.UserContext(), userId)))
}

func (c *chatController) SetMode(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	var req dto.ModeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := c.service.SetMode(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success set mode", res))
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
