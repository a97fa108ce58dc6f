package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/logger"
	"github.com/unifiedinbox/inbox/internal/message"
)

const twimlEmpty = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// InboundEngine is the part of the conversation engine webhooks drive.
type InboundEngine interface {
	HandleInbound(ctx context.Context, in channel.InboundEvent) (message.Message, error)
	ApplyStatus(ctx context.Context, cb channel.StatusCallback) error
}

// TwilioWebhooks verifies both message and status webhooks.
type TwilioWebhooks interface {
	channel.InboundVerifier
	VerifyStatusCallback(r *http.Request) (channel.StatusCallback, error)
}

// WebhookHandler receives provider webhooks. They are authenticated by
// provider signature, not by operator token.
type WebhookHandler struct {
	twilio TwilioWebhooks
	email  channel.InboundVerifier
	engine InboundEngine
	logger *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, twilio TwilioWebhooks, email channel.InboundVerifier, engine InboundEngine) *WebhookHandler {
	return &WebhookHandler{
		twilio: twilio,
		email:  email,
		engine: engine,
		logger: log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	group := e.Group("/webhooks")
	group.POST("/twilio", h.Twilio)
	group.POST("/twilio/status", h.TwilioStatus)
	group.POST("/email", h.Email)
}

// Twilio godoc
// @Summary Inbound SMS/WhatsApp webhook
// @Tags webhooks
// @Success 200 {string} string "empty TwiML response"
// @Failure 400 {object} ErrorResponse
// @Router /webhooks/twilio [post]
func (h *WebhookHandler) Twilio(c echo.Context) error {
	ev, err := h.twilio.VerifyInbound(c.Request())
	if apperr.Is(err, apperr.KindAuth) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}
	if err != nil {
		h.logger.Warn("unusable twilio webhook", slog.Any("error", err))
		return twiml(c)
	}
	h.handleInbound(c, ev)
	return twiml(c)
}

// TwilioStatus godoc
// @Summary Delivery status callback
// @Tags webhooks
// @Success 200 {string} string "empty TwiML response"
// @Failure 400 {object} ErrorResponse
// @Router /webhooks/twilio/status [post]
func (h *WebhookHandler) TwilioStatus(c echo.Context) error {
	cb, err := h.twilio.VerifyStatusCallback(c.Request())
	if apperr.Is(err, apperr.KindAuth) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}
	if err != nil {
		h.logger.Warn("unusable status callback", slog.Any("error", err))
		return twiml(c)
	}
	ctx := c.Request().Context()
	if err := h.engine.ApplyStatus(context.WithoutCancel(ctx), cb); err != nil {
		logger.FromContext(ctx).Error("apply status callback",
			slog.String("handler", "webhook"),
			slog.String("provider_message_id", cb.ProviderMessageID),
			slog.String("status", cb.Status),
			slog.Any("error", err),
		)
	}
	return twiml(c)
}

// Email godoc
// @Summary Inbound email webhook
// @Tags webhooks
// @Success 200
// @Failure 400 {object} ErrorResponse
// @Router /webhooks/email [post]
func (h *WebhookHandler) Email(c echo.Context) error {
	if h.email == nil {
		return echo.NewHTTPError(http.StatusNotFound, "email channel not configured")
	}
	ev, err := h.email.VerifyInbound(c.Request())
	if apperr.Is(err, apperr.KindAuth) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}
	if err != nil {
		h.logger.Warn("unusable email webhook", slog.Any("error", err))
		return c.NoContent(http.StatusOK)
	}
	h.handleInbound(c, ev)
	return c.NoContent(http.StatusOK)
}

// handleInbound records the message. Failures are logged only; the provider
// still gets its acknowledgement.
func (h *WebhookHandler) handleInbound(c echo.Context, ev channel.InboundEvent) {
	ctx := c.Request().Context()
	msg, err := h.engine.HandleInbound(context.WithoutCancel(ctx), ev)
	if err != nil {
		// The server tags the context logger with the request id.
		logger.FromContext(ctx).Error("handle inbound message",
			slog.String("handler", "webhook"),
			slog.String("channel", ev.Channel.String()),
			slog.String("provider_message_id", ev.ProviderMessageID),
			slog.Any("error", err),
		)
		return
	}
	h.logger.Debug("inbound accepted", slog.String("message_id", msg.ID), slog.String("contact_id", msg.ContactID))
}

func twiml(c echo.Context) error {
	return c.Blob(http.StatusOK, "text/xml", []byte(twimlEmpty))
}
