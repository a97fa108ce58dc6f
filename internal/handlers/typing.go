package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/internal/auth"
	"github.com/unifiedinbox/inbox/internal/typing"
)

// TypingTracker is the typing coordinator as seen by the API.
type TypingTracker interface {
	Start(conversationID, userID, userName string) bool
	Stop(conversationID, userID string) bool
	Snapshot(conversationID string) []typing.Typist
}

type TypingHandler struct {
	tracker TypingTracker
	logger  *slog.Logger
}

type TypingRequest struct {
	IsTyping *bool `json:"isTyping"`
}

type TypingResponse struct {
	Items []typing.Typist `json:"items"`
}

func NewTypingHandler(log *slog.Logger, tracker TypingTracker) *TypingHandler {
	return &TypingHandler{
		tracker: tracker,
		logger:  log.With(slog.String("handler", "typing")),
	}
}

func (h *TypingHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations/:contactId/typing")
	group.POST("", h.Set)
	group.GET("", h.List)
}

// Set godoc
// @Summary Report typing state
// @Description Clients repeat isTyping=true while typing; the state lapses on its own when they stop.
// @Tags typing
// @Accept json
// @Param contactId path string true "Contact ID"
// @Param payload body TypingRequest true "Typing state"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /conversations/{contactId}/typing [post]
func (h *TypingHandler) Set(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	var req TypingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.IsTyping == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "isTyping is required")
	}
	if *req.IsTyping {
		h.tracker.Start(contactID, userID, auth.UserNameFromContext(c))
	} else {
		h.tracker.Stop(contactID, userID)
	}
	return c.NoContent(http.StatusNoContent)
}

// List godoc
// @Summary List who is typing
// @Tags typing
// @Produce json
// @Param contactId path string true "Contact ID"
// @Success 200 {object} TypingResponse
// @Router /conversations/{contactId}/typing [get]
func (h *TypingHandler) List(c echo.Context) error {
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TypingResponse{Items: h.tracker.Snapshot(contactID)})
}
