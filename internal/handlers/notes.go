package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/internal/notes"
)

type NoteService interface {
	Create(ctx context.Context, contactID, authorID string, req notes.CreateRequest) (notes.Note, error)
	List(ctx context.Context, contactID, viewerID string) ([]notes.Note, error)
}

type NoteHandler struct {
	service NoteService
	logger  *slog.Logger
}

type NoteListResponse struct {
	Items []notes.Note `json:"items"`
}

func NewNoteHandler(log *slog.Logger, service NoteService) *NoteHandler {
	return &NoteHandler{
		service: service,
		logger:  log.With(slog.String("handler", "notes")),
	}
}

func (h *NoteHandler) Register(e *echo.Echo) {
	group := e.Group("/contacts/:contactId/notes")
	group.GET("", h.List)
	group.POST("", h.Create)
}

// Create godoc
// @Summary Add an internal note to a conversation
// @Tags notes
// @Accept json
// @Produce json
// @Param contactId path string true "Contact ID"
// @Param payload body notes.CreateRequest true "Note"
// @Success 201 {object} notes.Note
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /contacts/{contactId}/notes [post]
func (h *NoteHandler) Create(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	var req notes.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	note, err := h.service.Create(c.Request().Context(), contactID, userID, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, note)
}

// List godoc
// @Summary List notes visible to the caller
// @Tags notes
// @Produce json
// @Param contactId path string true "Contact ID"
// @Success 200 {object} NoteListResponse
// @Router /contacts/{contactId}/notes [get]
func (h *NoteHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context(), contactID, userID)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []notes.Note{}
	}
	return c.JSON(http.StatusOK, NoteListResponse{Items: items})
}
