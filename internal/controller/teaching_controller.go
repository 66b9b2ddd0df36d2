package controller

import (
	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/pkg/serverutils"
	"preset-teaching-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ITeachingController interface {
	RegisterRoutes(r fiber.Router)
	SubmitTurn(ctx *fiber.Ctx) error
	Flush(ctx *fiber.Ctx) error
	Audit(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type teachingController struct {
	teachingService service.ITeachingService
}

func NewTeachingController(teachingService service.ITeachingService) ITeachingController {
	return &teachingController{teachingService: teachingService}
}

func (c *teachingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/teaching")
	h.Use(serverutils.JwtMiddleware)
	h.Post("turns", c.SubmitTurn)
	h.Post("flush", c.Flush)
	h.Get("audit", c.Audit)
	h.Get("status", c.Status)
}

func (c *teachingController) SubmitTurn(ctx *fiber.Ctx) error {
	var req dto.SubmitTurnRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.teachingService.SubmitTurn(ctx.UserContext(), ownerOf(ctx), &req)
	if err != nil {
		return err
	}
	// turns are accepted asynchronously; rejection is not an HTTP error
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Turn received", res))
}

func (c *teachingController) Flush(ctx *fiber.Ctx) error {
	var req dto.FlushBatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.teachingService.FlushBatch(ctx.UserContext(), ownerOf(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success flush batch", res))
}

func (c *teachingController) Audit(ctx *fiber.Ctx) error {
	var req dto.AuditLogRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.teachingService.Audit(ctx.UserContext(), ownerOf(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success read teaching audit", res))
}

func (c *teachingController) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Teaching status", c.teachingService.Status()))
}
