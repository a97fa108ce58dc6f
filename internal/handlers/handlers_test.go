package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/auth"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/inbox"
	"github.com/unifiedinbox/inbox/internal/logger"
	"github.com/unifiedinbox/inbox/internal/message"
	"github.com/unifiedinbox/inbox/internal/schedule"
	"github.com/unifiedinbox/inbox/internal/typing"
)

const testSecret = "test-secret"

type registrar interface {
	Register(e *echo.Echo)
}

func newTestEcho(handlers ...registrar) *echo.Echo {
	e := echo.New()
	e.Use(auth.JWTMiddleware(testSecret, func(c echo.Context) bool {
		return strings.HasPrefix(c.Path(), "/webhooks/") || c.Path() == "/ping"
	}))
	for _, h := range handlers {
		h.Register(e)
	}
	return e
}

func bearer(t *testing.T, userID, name string) string {
	t.Helper()
	token, _, err := auth.GenerateNamedToken(userID, name, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, e *echo.Echo, method, target, body, authz string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type fakeTwilio struct {
	inbound channel.InboundEvent
	status  channel.StatusCallback
	err     error
}

func (f *fakeTwilio) VerifyInbound(*http.Request) (channel.InboundEvent, error) {
	return f.inbound, f.err
}

func (f *fakeTwilio) VerifyStatusCallback(*http.Request) (channel.StatusCallback, error) {
	return f.status, f.err
}

type fakeEngine struct {
	mu       sync.Mutex
	inbound  []channel.InboundEvent
	statuses []channel.StatusCallback
	sends    []inbox.SendRequest
	err      error
	retryErr error
}

func (f *fakeEngine) HandleInbound(_ context.Context, in channel.InboundEvent) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, in)
	return message.Message{ID: "m1", ContactID: "c1"}, f.err
}

func (f *fakeEngine) ApplyStatus(_ context.Context, cb channel.StatusCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, cb)
	return f.err
}

func (f *fakeEngine) Send(_ context.Context, req inbox.SendRequest) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, req)
	if f.err != nil {
		return message.Message{}, f.err
	}
	return message.Message{
		ID:        "m1",
		ContactID: req.ContactID,
		Channel:   req.Channel,
		Direction: message.Outbound,
		Content:   req.Content,
		Status:    message.StatusSent,
		SenderID:  req.SenderID,
	}, nil
}

func (f *fakeEngine) Retry(_ context.Context, messageID, senderID string) (message.Message, error) {
	if f.retryErr != nil {
		return message.Message{}, f.retryErr
	}
	return message.Message{ID: "m2", Status: message.StatusSent, SenderID: senderID}, nil
}

func TestTwilioWebhook(t *testing.T) {
	log := logger.Discard()

	t.Run("accepted", func(t *testing.T) {
		engine := &fakeEngine{}
		tw := &fakeTwilio{inbound: channel.InboundEvent{Channel: channel.SMS, ExternalAddress: "+15551234567", Body: "Hi"}}
		e := newTestEcho(NewWebhookHandler(log, tw, nil, engine))

		rec := do(t, e, http.MethodPost, "/webhooks/twilio", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/xml")
		assert.Contains(t, rec.Body.String(), "<Response></Response>")
		require.Len(t, engine.inbound, 1)
		assert.Equal(t, "Hi", engine.inbound[0].Body)
	})

	t.Run("bad signature", func(t *testing.T) {
		engine := &fakeEngine{}
		tw := &fakeTwilio{err: apperr.Auth("twilio webhook", "signature mismatch")}
		e := newTestEcho(NewWebhookHandler(log, tw, nil, engine))

		rec := do(t, e, http.MethodPost, "/webhooks/twilio", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, engine.inbound)
	})

	t.Run("engine failure still acknowledged", func(t *testing.T) {
		engine := &fakeEngine{err: apperr.Store("append", "message", errors.New("db down"))}
		tw := &fakeTwilio{inbound: channel.InboundEvent{Channel: channel.SMS, ExternalAddress: "+15551234567", Body: "Hi"}}
		e := newTestEcho(NewWebhookHandler(log, tw, nil, engine))

		rec := do(t, e, http.MethodPost, "/webhooks/twilio", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<Response></Response>")
	})

	t.Run("status callback", func(t *testing.T) {
		engine := &fakeEngine{}
		tw := &fakeTwilio{status: channel.StatusCallback{Channel: channel.SMS, ProviderMessageID: "SM1", Status: "DELIVERED"}}
		e := newTestEcho(NewWebhookHandler(log, tw, nil, engine))

		rec := do(t, e, http.MethodPost, "/webhooks/twilio/status", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, engine.statuses, 1)
		assert.Equal(t, "SM1", engine.statuses[0].ProviderMessageID)
	})

	t.Run("email not configured", func(t *testing.T) {
		e := newTestEcho(NewWebhookHandler(log, &fakeTwilio{}, nil, &fakeEngine{}))
		rec := do(t, e, http.MethodPost, "/webhooks/email", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type fakeLister struct {
	called string
	cursor int64
	limit  int
}

func (f *fakeLister) ListSince(_ context.Context, _ string, cursor int64, limit int) ([]message.Message, error) {
	f.called, f.cursor, f.limit = "since", cursor, limit
	return []message.Message{{ID: "m3", Seq: cursor + 1}}, nil
}

func (f *fakeLister) ListLatest(_ context.Context, _ string, limit int) ([]message.Message, error) {
	f.called, f.limit = "latest", limit
	return nil, nil
}

func (f *fakeLister) ListBefore(_ context.Context, _ string, cursor int64, limit int) ([]message.Message, error) {
	f.called, f.cursor, f.limit = "before", cursor, limit
	return nil, nil
}

func TestSendMessage(t *testing.T) {
	engine := &fakeEngine{}
	e := newTestEcho(NewMessageHandler(logger.Discard(), engine, &fakeLister{}))
	body := `{"contactId":"c1","channel":"sms","content":"Hello"}`

	rec := do(t, e, http.MethodPost, "/messages", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, engine.sends)

	rec = do(t, e, http.MethodPost, "/messages", body, bearer(t, "op-1", "Ada"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var msg message.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, message.StatusSent, msg.Status)
	require.Len(t, engine.sends, 1)
	assert.Equal(t, "op-1", engine.sends[0].SenderID)
	assert.Equal(t, channel.SMS, engine.sends[0].Channel)

	rec = do(t, e, http.MethodPost, "/messages", `{"channel":"sms","content":"x"}`, bearer(t, "op-1", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	engine.err = apperr.NotFound("send message", "contact address")
	rec = do(t, e, http.MethodPost, "/messages", body, bearer(t, "op-1", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryMessageConflict(t *testing.T) {
	engine := &fakeEngine{retryErr: apperr.Conflict("retry message", "only failed outbound messages can be retried")}
	e := newTestEcho(NewMessageHandler(logger.Discard(), engine, &fakeLister{}))

	rec := do(t, e, http.MethodPost, "/messages/m1/retry", "", bearer(t, "op-1", ""))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListMessagesCursor(t *testing.T) {
	lister := &fakeLister{}
	e := newTestEcho(NewMessageHandler(logger.Discard(), &fakeEngine{}, lister))
	token := bearer(t, "op-1", "")

	rec := do(t, e, http.MethodGet, "/conversations/c1/messages?since=41&limit=10", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "since", lister.called)
	assert.EqualValues(t, 41, lister.cursor)
	assert.Equal(t, 10, lister.limit)

	rec = do(t, e, http.MethodGet, "/conversations/c1/messages", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "latest", lister.called)
	assert.Equal(t, defaultMessageLimit, lister.limit)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = do(t, e, http.MethodGet, "/conversations/c1/messages?since=abc", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeSchedules struct {
	cancelErr error
	created   schedule.CreateRequest
	createdBy string
}

func (f *fakeSchedules) Create(_ context.Context, createdBy string, req schedule.CreateRequest) (schedule.ScheduledSend, error) {
	f.created, f.createdBy = req, createdBy
	return schedule.ScheduledSend{ID: "s1", Status: schedule.StatusPending, RecurringDays: req.RecurringDays, IsRecurring: req.IsRecurring}, nil
}

func (f *fakeSchedules) Get(context.Context, string) (schedule.ScheduledSend, error) {
	return schedule.ScheduledSend{}, apperr.NotFound("get scheduled send", "scheduled send")
}

func (f *fakeSchedules) List(context.Context, string, int, int) ([]schedule.ScheduledSend, error) {
	return nil, nil
}

func (f *fakeSchedules) Update(context.Context, string, schedule.UpdateRequest) (schedule.ScheduledSend, error) {
	return schedule.ScheduledSend{}, apperr.Conflict("update scheduled send", "too late: scheduled send is SENT")
}

func (f *fakeSchedules) Cancel(context.Context, string) (schedule.ScheduledSend, error) {
	if f.cancelErr != nil {
		return schedule.ScheduledSend{}, f.cancelErr
	}
	return schedule.ScheduledSend{ID: "s1", Status: schedule.StatusCancelled}, nil
}

func TestScheduledMessages(t *testing.T) {
	svc := &fakeSchedules{}
	e := newTestEcho(NewScheduleHandler(logger.Discard(), svc))
	token := bearer(t, "op-1", "")

	body := `{"contactId":"c1","channel":"sms","content":"standup","scheduledFor":"2026-03-02T09:00:00Z","isRecurring":true,"recurringDays":[1,3]}`
	rec := do(t, e, http.MethodPost, "/scheduled-messages", body, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "op-1", svc.createdBy)
	assert.Equal(t, []int{1, 3}, svc.created.RecurringDays)
	assert.True(t, svc.created.ScheduledFor.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))

	rec = do(t, e, http.MethodGet, "/scheduled-messages/s9", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodPut, "/scheduled-messages/s1", `{"content":"x"}`, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodDelete, "/scheduled-messages/s1", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(schedule.StatusCancelled))

	svc.cancelErr = apperr.Conflict("cancel scheduled send", "too late: scheduled send is DISPATCHING")
	rec = do(t, e, http.MethodDelete, "/scheduled-messages/s1", "", token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodGet, "/scheduled-messages", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestTypingEndpoints(t *testing.T) {
	coordinator := typing.NewCoordinator(logger.Discard(), nil, time.Minute, time.Minute)
	e := newTestEcho(NewTypingHandler(logger.Discard(), coordinator))
	token := bearer(t, "op-1", "Ada")

	rec := do(t, e, http.MethodPost, "/conversations/c1/typing", `{"isTyping":true}`, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, e, http.MethodGet, "/conversations/c1/typing", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TypingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "op-1", resp.Items[0].UserID)
	assert.Equal(t, "Ada", resp.Items[0].UserName)

	rec = do(t, e, http.MethodPost, "/conversations/c1/typing", `{"isTyping":false}`, token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, coordinator.Snapshot("c1"))

	rec = do(t, e, http.MethodPost, "/conversations/c1/typing", `{}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPing(t *testing.T) {
	e := newTestEcho(NewPingHandler(logger.Discard()))
	rec := do(t, e, http.MethodGet, "/ping", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSwaggerServesEmbeddedDocument(t *testing.T) {
	e := newTestEcho(NewSwaggerHandler(logger.Discard()))
	rec := do(t, e, http.MethodGet, "/api/swagger.json", "", bearer(t, "agent-1", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Swagger string                    `json:"swagger"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc.Swagger)
	for _, path := range []string{"/messages", "/webhooks/twilio", "/scheduled-messages/{id}", "/conversations/{contactId}/stream"} {
		assert.Contains(t, doc.Paths, path)
	}
}
