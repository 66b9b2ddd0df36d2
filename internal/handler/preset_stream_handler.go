package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/internal/pkg/serverutils"
	"preset-teaching-be/internal/service"
	internalWS "preset-teaching-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Inbound and outbound frame types besides PRESET_UPDATED.
const (
	FrameTurn    = "turn"
	FrameTurnAck = "TURN_ACK"
	FrameError   = "ERROR"
)

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PresetStreamHandler serves /ws: preset updates go out, conversation turns
// come in.
type PresetStreamHandler struct {
	hub      *internalWS.Hub
	teaching service.ITeachingService
	logger   logger.ILogger
}

func NewPresetStreamHandler(hub *internalWS.Hub, teaching service.ITeachingService, log logger.ILogger) *PresetStreamHandler {
	return &PresetStreamHandler{hub: hub, teaching: teaching, logger: log}
}

func (h *PresetStreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws", h.ServeWs)
}

func (h *PresetStreamHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
	}

	owner, err := serverutils.ParseToken(tokenStr)
	if err != nil {
		h.logger.Warn("WS", "Invalid token in handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("WS", "Session started", map[string]interface{}{"owner": owner})
		internalWS.ServeWs(h.hub, conn, owner, h.HandleFrame)
		h.logger.Info("WS", "Session ended", map[string]interface{}{"owner": owner})
	})(c)
}

// HandleFrame decodes one inbound frame. Only turn frames are understood.
func (h *PresetStreamHandler) HandleFrame(owner string, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.hub.SendTo(owner, FrameError, fiber.Map{"message": "frame is not valid JSON"})
		return
	}
	if frame.Type != FrameTurn {
		h.hub.SendTo(owner, FrameError, fiber.Map{"message": "unsupported frame type " + frame.Type})
		return
	}

	var req dto.SubmitTurnRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		h.hub.SendTo(owner, FrameError, fiber.Map{"message": "turn data is malformed"})
		return
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		h.hub.SendTo(owner, FrameError, fiber.Map{"message": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.teaching.SubmitTurn(ctx, owner, &req)
	if err != nil {
		h.logger.Error("WS", "Submit turn failed", map[string]interface{}{"owner": owner, "error": err.Error()})
		h.hub.SendTo(owner, FrameError, fiber.Map{"message": "turn was not accepted"})
		return
	}
	h.hub.SendTo(owner, FrameTurnAck, res)
}
