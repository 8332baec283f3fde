package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/moimlab/moim-server/internal/hub"
	"github.com/moimlab/moim-server/internal/middleware"
	"github.com/moimlab/moim-server/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients send tokens via query or subprotocol; origin
	// enforcement belongs to the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades authenticated members into a reservation's room.
type WSHandler struct {
	Hub  *hub.Hub
	Chat *service.ChatService
}

func NewWSHandler(h *hub.Hub, chat *service.ChatService) *WSHandler {
	return &WSHandler{Hub: h, Chat: chat}
}

// chatBackend adapts the chat service to the hub's inbound interface.
type chatBackend struct {
	chat *service.ChatService
}

func (b chatBackend) Send(ctx context.Context, roomID, senderID uint64, body string) error {
	_, err := b.chat.Send(ctx, roomID, senderID, body)
	return err
}

func (b chatBackend) MarkRead(ctx context.Context, roomID, userID uint64) error {
	_, err := b.chat.MarkRead(ctx, roomID, userID)
	return err
}

// Subscribe authorizes the caller for the room, upgrades the
// connection, and hands it to the hub.
func (h *WSHandler) Subscribe(c echo.Context) error {
	roomID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	userID := middleware.UserID(c)
	if err := h.Chat.Authorize(c.Request().Context(), roomID, userID); err != nil {
		return fail(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade wrote the handshake error itself.
		return nil
	}
	hub.Serve(h.Hub, conn, chatBackend{chat: h.Chat}, roomID, userID)
	return nil
}
