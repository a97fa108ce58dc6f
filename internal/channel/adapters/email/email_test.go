package email

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/logger"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestAdapter(t *testing.T, deliver func(context.Context, *mail.Msg) error) *Adapter {
	t.Helper()
	a, err := NewAdapter(logger.Discard(), Config{
		From:              "support@inbox.example.com",
		WebhookSigningKey: "key-1",
		WebhookTolerance:  5 * time.Minute,
	})
	require.NoError(t, err)
	a.now = func() time.Time { return fixedNow }
	if deliver != nil {
		a.deliver = deliver
	}
	return a
}

func signedForm(ts time.Time, fields map[string]string) url.Values {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	form.Set("timestamp", timestamp)
	form.Set("token", "tok-abc")
	form.Set("signature", Sign("key-1", timestamp, "tok-abc"))
	return form
}

func postForm(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSendUsesMessageIDAsReceipt(t *testing.T) {
	var sent *mail.Msg
	a := newTestAdapter(t, func(_ context.Context, msg *mail.Msg) error {
		sent = msg
		return nil
	})

	receipt, err := a.Send(context.Background(), channel.OutboundMessage{
		Channel: channel.Email,
		To:      "ana@example.com",
		Body:    "Your order shipped",
	})
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.NotEmpty(t, receipt.ProviderMessageID)
	assert.NotContains(t, receipt.ProviderMessageID, "<")
	assert.Equal(t, []string{defaultSubject}, sent.GetGenHeader(mail.HeaderSubject))
}

func TestSendClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind channel.SendErrorKind
	}{
		{"rejected recipient", &mail.SendError{Reason: mail.ErrSMTPRcptTo}, channel.InvalidAddress},
		{"dial failure", &mail.SendError{Reason: mail.ErrConnCheck}, channel.ProviderUnavailable},
		{"plain error", errors.New("connection refused"), channel.ProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(context.Context, *mail.Msg) error { return tt.err })
			_, err := a.Send(context.Background(), channel.OutboundMessage{Channel: channel.Email, To: "ana@example.com", Body: "x"})
			assert.Equal(t, tt.kind, channel.AsSendError(err).Kind)
		})
	}
}

func TestSendRejectsMalformedRecipient(t *testing.T) {
	a := newTestAdapter(t, func(context.Context, *mail.Msg) error {
		t.Fatal("deliver must not be called")
		return nil
	})
	_, err := a.Send(context.Background(), channel.OutboundMessage{Channel: channel.Email, To: "not an address"})
	assert.Equal(t, channel.InvalidAddress, channel.AsSendError(err).Kind)
}

func TestSendWithoutSMTPHost(t *testing.T) {
	a := newTestAdapter(t, nil)
	_, err := a.Send(context.Background(), channel.OutboundMessage{Channel: channel.Email, To: "ana@example.com"})
	assert.Equal(t, channel.ProviderUnavailable, channel.AsSendError(err).Kind)
}

func TestVerifyInbound(t *testing.T) {
	form := signedForm(fixedNow.Add(-time.Minute), map[string]string{
		"sender":     "Ana@Example.com",
		"subject":    "Order 42",
		"body-plain": "Where is it?",
		"Message-Id": "<abc@mail.example.com>",
	})

	ev, err := newTestAdapter(t, nil).VerifyInbound(postForm(form))
	require.NoError(t, err)
	assert.Equal(t, channel.Email, ev.Channel)
	assert.Equal(t, "Ana@Example.com", ev.ExternalAddress)
	assert.Equal(t, "Order 42", ev.Subject)
	assert.Equal(t, "Where is it?", ev.Body)
	assert.Equal(t, "abc@mail.example.com", ev.ProviderMessageID)
}

func TestVerifyInboundRejects(t *testing.T) {
	a := newTestAdapter(t, nil)

	stale := signedForm(fixedNow.Add(-time.Hour), map[string]string{"sender": "a@b.c", "body-plain": "x"})
	_, err := a.VerifyInbound(postForm(stale))
	assert.True(t, apperr.Is(err, apperr.KindAuth), "stale timestamp: %v", err)

	tampered := signedForm(fixedNow, map[string]string{"sender": "a@b.c", "body-plain": "x"})
	tampered.Set("token", "other")
	_, err = a.VerifyInbound(postForm(tampered))
	assert.True(t, apperr.Is(err, apperr.KindAuth), "tampered token: %v", err)

	empty := signedForm(fixedNow, map[string]string{"sender": "a@b.c"})
	_, err = a.VerifyInbound(postForm(empty))
	assert.True(t, apperr.Is(err, apperr.KindValidation), "empty body: %v", err)
}
