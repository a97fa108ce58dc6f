package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/internal/contacts"
	"github.com/unifiedinbox/inbox/internal/history"
)

type ContactService interface {
	Get(ctx context.Context, contactID string) (contacts.Contact, error)
	List(ctx context.Context, limit, offset int) ([]contacts.Contact, error)
	Create(ctx context.Context, req contacts.CreateRequest) (contacts.Contact, error)
	Update(ctx context.Context, contactID string, req contacts.UpdateRequest) (contacts.Contact, error)
	Delete(ctx context.Context, contactID string) error
	Conversations(ctx context.Context, limit, offset int) ([]contacts.Conversation, error)
}

type HistoryService interface {
	List(ctx context.Context, contactID, viewerID string, limit int) ([]history.Entry, error)
}

type ContactsHandler struct {
	service ContactService
	history HistoryService
	logger  *slog.Logger
}

type ConversationListResponse struct {
	Items []contacts.Conversation `json:"items"`
}

func NewContactsHandler(log *slog.Logger, service ContactService, history HistoryService) *ContactsHandler {
	return &ContactsHandler{
		service: service,
		history: history,
		logger:  log.With(slog.String("handler", "contacts")),
	}
}

func (h *ContactsHandler) Register(e *echo.Echo) {
	group := e.Group("/contacts")
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:contactId", h.Get)
	group.PUT("/:contactId", h.Update)
	group.DELETE("/:contactId", h.Delete)
	group.GET("/:contactId/history", h.History)
	e.GET("/conversations", h.Conversations)
}

// List godoc
// @Summary List contacts
// @Tags contacts
// @Produce json
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} contacts.ListResponse
// @Router /contacts [get]
func (h *ContactsHandler) List(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context(), limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []contacts.Contact{}
	}
	return c.JSON(http.StatusOK, contacts.ListResponse{Items: items})
}

// Create godoc
// @Summary Create a contact
// @Tags contacts
// @Accept json
// @Produce json
// @Param payload body contacts.CreateRequest true "Contact"
// @Success 201 {object} contacts.Contact
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /contacts [post]
func (h *ContactsHandler) Create(c echo.Context) error {
	var req contacts.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	contact, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	h.logger.Info("contact created", slog.String("contact_id", contact.ID))
	return c.JSON(http.StatusCreated, contact)
}

// Get godoc
// @Summary Get a contact
// @Tags contacts
// @Produce json
// @Param contactId path string true "Contact ID"
// @Success 200 {object} contacts.Contact
// @Failure 404 {object} ErrorResponse
// @Router /contacts/{contactId} [get]
func (h *ContactsHandler) Get(c echo.Context) error {
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	contact, err := h.service.Get(c.Request().Context(), contactID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, contact)
}

// Update godoc
// @Summary Update a contact
// @Tags contacts
// @Accept json
// @Produce json
// @Param contactId path string true "Contact ID"
// @Param payload body contacts.UpdateRequest true "Changes"
// @Success 200 {object} contacts.Contact
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /contacts/{contactId} [put]
func (h *ContactsHandler) Update(c echo.Context) error {
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	var req contacts.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	contact, err := h.service.Update(c.Request().Context(), contactID, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, contact)
}

// Delete godoc
// @Summary Delete a contact
// @Description Soft delete. Messages are kept and a later inbound message revives the contact.
// @Tags contacts
// @Param contactId path string true "Contact ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /contacts/{contactId} [delete]
func (h *ContactsHandler) Delete(c echo.Context) error {
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), contactID); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// History godoc
// @Summary Contact timeline
// @Description Messages and the notes visible to the caller, newest first.
// @Tags contacts
// @Produce json
// @Param contactId path string true "Contact ID"
// @Param limit query int false "Limit"
// @Success 200 {object} history.ListResponse
// @Router /contacts/{contactId}/history [get]
func (h *ContactsHandler) History(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	items, err := h.history.List(c.Request().Context(), contactID, userID, limit)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []history.Entry{}
	}
	return c.JSON(http.StatusOK, history.ListResponse{Items: items})
}

// Conversations godoc
// @Summary List conversations
// @Description Contacts ordered by most recent message, with a preview of it.
// @Tags contacts
// @Produce json
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} ConversationListResponse
// @Router /conversations [get]
func (h *ContactsHandler) Conversations(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}
	items, err := h.service.Conversations(c.Request().Context(), limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []contacts.Conversation{}
	}
	return c.JSON(http.StatusOK, ConversationListResponse{Items: items})
}

func pageParams(c echo.Context) (int, int, error) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
