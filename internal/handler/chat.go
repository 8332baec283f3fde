package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moimlab/moim-server/internal/middleware"
	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/service"
)

// ChatHandler serves message history and read state over HTTP.  Live
// messaging goes over the WebSocket; these endpoints exist for initial
// load and clients that reconnect after missing events.
type ChatHandler struct {
	Chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{Chat: chat}
}

type sendMessageReq struct {
	Body string `json:"body"`
}

type messageView struct {
	Seq       uint64    `json:"seq"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Payload   *string   `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func viewMessage(m *model.Message) messageView {
	v := messageView{
		Seq:       m.Seq,
		Sender:    model.SystemSender,
		Body:      m.Body,
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
	}
	if m.SenderID != nil {
		v.Sender = strconv.FormatUint(*m.SenderID, 10)
	}
	return v
}

// History returns messages after the given sequence, oldest first.
func (h *ChatHandler) History(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	after := uint64(0)
	if s := c.QueryParam("after"); s != "" {
		if n, perr := strconv.ParseUint(s, 10, 64); perr == nil {
			after = n
		}
	}
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		if n, perr := strconv.Atoi(s); perr == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	msgs, err := h.Chat.History(c.Request().Context(), id, middleware.UserID(c), after, limit)
	if err != nil {
		return fail(c, err)
	}
	views := make([]messageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, viewMessage(&msgs[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": views})
}

// Send posts a message over HTTP; the WebSocket path is equivalent.
func (h *ChatHandler) Send(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req sendMessageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	msg, err := h.Chat.Send(c.Request().Context(), id, middleware.UserID(c), req.Body)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, viewMessage(msg))
}

// MarkRead advances the caller's read cursor to the newest message.
func (h *ChatHandler) MarkRead(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	seq, err := h.Chat.MarkRead(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"last_read_seq": seq})
}

// Unread returns the caller's unread message count.
func (h *ChatHandler) Unread(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	n, err := h.Chat.Unread(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}
