package controller

import (
	"errors"

	"preset-teaching-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

// httpError maps service errors to fiber errors; anything else stays a 500.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrPresetNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrVersionConflict), errors.Is(err, service.ErrDuplicateSource):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidDocument):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

func ownerOf(ctx *fiber.Ctx) string {
	owner, _ := ctx.Locals("user_id").(string)
	return owner
}
