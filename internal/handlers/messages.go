package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/internal/inbox"
	"github.com/unifiedinbox/inbox/internal/message"
)

const defaultMessageLimit = 50

// MessageSender is the outbound half of the conversation engine.
type MessageSender interface {
	Send(ctx context.Context, req inbox.SendRequest) (message.Message, error)
	Retry(ctx context.Context, messageID, senderID string) (message.Message, error)
}

// MessageLister reads a conversation by seq cursor.
type MessageLister interface {
	ListSince(ctx context.Context, contactID string, cursor int64, limit int) ([]message.Message, error)
	ListLatest(ctx context.Context, contactID string, limit int) ([]message.Message, error)
	ListBefore(ctx context.Context, contactID string, cursor int64, limit int) ([]message.Message, error)
}

type MessageHandler struct {
	sender   MessageSender
	messages MessageLister
	logger   *slog.Logger
}

type MessageListResponse struct {
	Items []message.Message `json:"items"`
}

func NewMessageHandler(log *slog.Logger, sender MessageSender, messages MessageLister) *MessageHandler {
	return &MessageHandler{
		sender:   sender,
		messages: messages,
		logger:   log.With(slog.String("handler", "message")),
	}
}

func (h *MessageHandler) Register(e *echo.Echo) {
	e.POST("/messages", h.Send)
	e.POST("/messages/:id/retry", h.Retry)
	e.GET("/conversations/:contactId/messages", h.List)
}

// Send godoc
// @Summary Send a message to a contact
// @Description Delivers immediately. Provider failures are recorded on the message as FAILED.
// @Tags messages
// @Accept json
// @Produce json
// @Param payload body inbox.SendRequest true "Message"
// @Success 201 {object} message.Message
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) Send(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req inbox.SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ContactID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contactId is required")
	}
	req.SenderID = userID
	msg, err := h.sender.Send(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// Retry godoc
// @Summary Retry a failed outbound message
// @Tags messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 201 {object} message.Message
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /messages/{id}/retry [post]
func (h *MessageHandler) Retry(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}
	msg, err := h.sender.Retry(c.Request().Context(), id, userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// List godoc
// @Summary List conversation messages
// @Description Ascending by seq. Without since, returns the latest messages.
// @Tags messages
// @Produce json
// @Param contactId path string true "Contact ID"
// @Param since query int false "Return messages with seq greater than this"
// @Param before query int false "Return messages with seq less than this"
// @Param limit query int false "Limit"
// @Success 200 {object} MessageListResponse
// @Failure 400 {object} ErrorResponse
// @Router /conversations/{contactId}/messages [get]
func (h *MessageHandler) List(c echo.Context) error {
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", defaultMessageLimit)
	if err != nil {
		return err
	}
	since, hasSince, err := querySeq(c, "since")
	if err != nil {
		return err
	}
	before, hasBefore, err := querySeq(c, "before")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var items []message.Message
	switch {
	case hasSince:
		items, err = h.messages.ListSince(ctx, contactID, since, limit)
	case hasBefore:
		items, err = h.messages.ListBefore(ctx, contactID, before, limit)
	default:
		items, err = h.messages.ListLatest(ctx, contactID, limit)
	}
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []message.Message{}
	}
	return c.JSON(http.StatusOK, MessageListResponse{Items: items})
}

func querySeq(c echo.Context, name string) (int64, bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, false, nil
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0, false, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return seq, true, nil
}
