package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/internal/message/event"
)

const defaultHeartbeat = 20 * time.Second

// StreamHandler pushes conversation events to live viewers over SSE or
// WebSocket. There is no replay: a viewer that reconnects reconciles from
// the message list.
type StreamHandler struct {
	events    event.Subscriber
	buffer    int
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewStreamHandler(log *slog.Logger, events event.Subscriber, buffer int, heartbeat time.Duration) *StreamHandler {
	if buffer <= 0 {
		buffer = event.DefaultBufferSize
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &StreamHandler{
		events:    events,
		buffer:    buffer,
		heartbeat: heartbeat,
		logger:    log.With(slog.String("handler", "stream")),
	}
}

func (h *StreamHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations/:contactId")
	group.GET("/stream", h.SSE)
	group.GET("/ws", h.WebSocket)
}

func writeSSEData(writer *bufio.Writer, flusher http.Flusher, payload string) error {
	if _, err := writer.WriteString(fmt.Sprintf("data: %s\n\n", payload)); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEJSON(writer *bufio.Writer, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return writeSSEData(writer, flusher, string(data))
}

func writeSSEComment(writer *bufio.Writer, flusher http.Flusher, comment string) error {
	if _, err := writer.WriteString(": " + comment + "\n\n"); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// SSE godoc
// @Summary Stream conversation events (SSE)
// @Description Emits new-message, message-status, user-typing and note-update events.
// @Tags stream
// @Produce text/event-stream
// @Param contactId path string true "Contact ID"
// @Success 200 {string} string
// @Router /conversations/{contactId}/stream [get]
func (h *StreamHandler) SSE(c echo.Context) error {
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}

	streamID, stream, cancel := h.events.Subscribe(event.ConversationTopic(contactID), h.buffer)
	defer cancel()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	writer := bufio.NewWriter(c.Response().Writer)
	if err := writeSSEComment(writer, flusher, "connected"); err != nil {
		return nil
	}

	h.logger.Debug("sse viewer attached", slog.String("contact_id", contactID), slog.String("stream_id", streamID))
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if err := writeSSEComment(writer, flusher, "ping"); err != nil {
				return nil
			}
		case ev, ok := <-stream:
			if !ok {
				h.logger.Info("sse viewer evicted", slog.String("contact_id", contactID), slog.String("stream_id", streamID))
				return nil
			}
			if err := writeSSEJSON(writer, flusher, ev); err != nil {
				return nil
			}
		}
	}
}

// WebSocket godoc
// @Summary Stream conversation events (WebSocket)
// @Description Each frame is one JSON event. Client frames are ignored.
// @Tags stream
// @Param contactId path string true "Contact ID"
// @Success 101
// @Router /conversations/{contactId}/ws [get]
func (h *StreamHandler) WebSocket(c echo.Context) error {
	contactID, err := requireParam(c, "contactId")
	if err != nil {
		return err
	}
	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		// Accept has already written the error response.
		h.logger.Warn("websocket accept failed", slog.Any("error", err))
		return nil
	}
	defer conn.CloseNow()

	streamID, stream, cancel := h.events.Subscribe(event.ConversationTopic(contactID), h.buffer)
	defer cancel()

	// Client frames carry nothing; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := conn.CloseRead(c.Request().Context())
	h.logger.Debug("ws viewer attached", slog.String("contact_id", contactID), slog.String("stream_id", streamID))

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if err := h.ping(ctx, conn); err != nil {
				return nil
			}
		case ev, ok := <-stream:
			if !ok {
				h.logger.Info("ws viewer evicted", slog.String("contact_id", contactID), slog.String("stream_id", streamID))
				_ = conn.Close(websocket.StatusTryAgainLater, "too slow; reconnect and reload")
				return nil
			}
			writeCtx, done := context.WithTimeout(ctx, h.heartbeat)
			err := wsjson.Write(writeCtx, conn, ev)
			done()
			if err != nil {
				return nil
			}
		}
	}
}

func (h *StreamHandler) ping(ctx context.Context, conn *websocket.Conn) error {
	pingCtx, cancel := context.WithTimeout(ctx, h.heartbeat)
	defer cancel()
	return conn.Ping(pingCtx)
}
