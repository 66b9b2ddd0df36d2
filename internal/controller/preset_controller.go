package controller

import (
	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/pkg/serverutils"
	"preset-teaching-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IPresetController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Replace(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Nodes(ctx *fiber.Ctx) error
	Patch(ctx *fiber.Ctx) error
	Rounds(ctx *fiber.Ctx) error
}

type presetController struct {
	presetService service.IPresetService
}

func NewPresetController(presetService service.IPresetService) IPresetController {
	return &presetController{presetService: presetService}
}

func (c *presetController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/presets")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Put(":id", c.Replace)
	h.Delete(":id", c.Delete)
	h.Get(":id/nodes", c.Nodes)
	h.Post(":id/patch", c.Patch)
	h.Get(":id/rounds", c.Rounds)
}

func presetID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid preset id")
	}
	return id, nil
}

func (c *presetController) List(ctx *fiber.Ctx) error {
	res, err := c.presetService.List(ctx.UserContext(), ownerOf(ctx))
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list presets", res))
}

func (c *presetController) Create(ctx *fiber.Ctx) error {
	var req dto.CreatePresetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.presetService.Create(ctx.UserContext(), ownerOf(ctx), &req)
	if err != nil {
		return httpError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create preset", res))
}

func (c *presetController) Show(ctx *fiber.Ctx) error {
	id, err := presetID(ctx)
	if err != nil {
		return err
	}
	res, err := c.presetService.Show(ctx.UserContext(), ownerOf(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show preset", res))
}

func (c *presetController) Replace(ctx *fiber.Ctx) error {
	id, err := presetID(ctx)
	if err != nil {
		return err
	}
	var req dto.ReplacePresetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.presetService.Replace(ctx.UserContext(), ownerOf(ctx), id, &req)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success replace preset", res))
}

func (c *presetController) Delete(ctx *fiber.Ctx) error {
	id, err := presetID(ctx)
	if err != nil {
		return err
	}
	if err := c.presetService.Delete(ctx.UserContext(), ownerOf(ctx), id); err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete preset", nil))
}

func (c *presetController) Nodes(ctx *fiber.Ctx) error {
	id, err := presetID(ctx)
	if err != nil {
		return err
	}
	res, err := c.presetService.Nodes(ctx.UserContext(), ownerOf(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list preset nodes", res))
}

func (c *presetController) Patch(ctx *fiber.Ctx) error {
	id, err := presetID(ctx)
	if err != nil {
		return err
	}
	var req dto.PatchPresetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.presetService.Patch(ctx.UserContext(), ownerOf(ctx), id, &req)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success patch preset", res))
}

func (c *presetController) Rounds(ctx *fiber.Ctx) error {
	id, err := presetID(ctx)
	if err != nil {
		return err
	}
	var req dto.ListRoundsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.presetService.Rounds(ctx.UserContext(), ownerOf(ctx), id, &req)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list teaching rounds", res))
}
