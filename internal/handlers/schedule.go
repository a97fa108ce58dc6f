package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/internal/schedule"
)

type ScheduleService interface {
	Create(ctx context.Context, createdBy string, req schedule.CreateRequest) (schedule.ScheduledSend, error)
	Get(ctx context.Context, id string) (schedule.ScheduledSend, error)
	List(ctx context.Context, contactID string, limit, offset int) ([]schedule.ScheduledSend, error)
	Update(ctx context.Context, id string, req schedule.UpdateRequest) (schedule.ScheduledSend, error)
	Cancel(ctx context.Context, id string) (schedule.ScheduledSend, error)
}

type ScheduleHandler struct {
	service ScheduleService
	logger  *slog.Logger
}

func NewScheduleHandler(log *slog.Logger, service ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		logger:  log.With(slog.String("handler", "schedule")),
	}
}

func (h *ScheduleHandler) Register(e *echo.Echo) {
	group := e.Group("/scheduled-messages")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Cancel)
}

// Create godoc
// @Summary Schedule a message
// @Description One-shot, or recurring on the given weekdays (0=Sunday) at the same time of day.
// @Tags schedule
// @Accept json
// @Produce json
// @Param payload body schedule.CreateRequest true "Scheduled send"
// @Success 201 {object} schedule.ScheduledSend
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /scheduled-messages [post]
func (h *ScheduleHandler) Create(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req schedule.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.service.Create(c.Request().Context(), userID, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

// List godoc
// @Summary List scheduled messages
// @Tags schedule
// @Produce json
// @Param contactId query string false "Only this contact"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} schedule.ListResponse
// @Router /scheduled-messages [get]
func (h *ScheduleHandler) List(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context(), strings.TrimSpace(c.QueryParam("contactId")), limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []schedule.ScheduledSend{}
	}
	return c.JSON(http.StatusOK, schedule.ListResponse{Items: items})
}

// Get godoc
// @Summary Get a scheduled message
// @Tags schedule
// @Produce json
// @Param id path string true "Scheduled send ID"
// @Success 200 {object} schedule.ScheduledSend
// @Failure 404 {object} ErrorResponse
// @Router /scheduled-messages/{id} [get]
func (h *ScheduleHandler) Get(c echo.Context) error {
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}
	item, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// Update godoc
// @Summary Edit a pending scheduled message
// @Tags schedule
// @Accept json
// @Produce json
// @Param id path string true "Scheduled send ID"
// @Param payload body schedule.UpdateRequest true "Changes"
// @Success 200 {object} schedule.ScheduledSend
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /scheduled-messages/{id} [put]
func (h *ScheduleHandler) Update(c echo.Context) error {
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}
	var req schedule.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.service.Update(c.Request().Context(), id, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// Cancel godoc
// @Summary Cancel a scheduled message
// @Description Too late once a dispatcher has claimed the entry.
// @Tags schedule
// @Produce json
// @Param id path string true "Scheduled send ID"
// @Success 200 {object} schedule.ScheduledSend
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /scheduled-messages/{id} [delete]
func (h *ScheduleHandler) Cancel(c echo.Context) error {
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}
	item, err := h.service.Cancel(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	h.logger.Info("scheduled send cancelled", slog.String("id", id))
	return c.JSON(http.StatusOK, item)
}
