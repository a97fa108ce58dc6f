package twilio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/logger"
)

func TestSignatureKnownVector(t *testing.T) {
	params := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+14158675309"},
		"Digits":  {"1234"},
		"From":    {"+14158675309"},
		"To":      {"+18005551212"},
	}
	got := Signature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", params)
	if got != "RSOYDt4T1cUTdK1PDd93/VVr8B8=" {
		t.Fatalf("Signature() = %q", got)
	}
	if !ValidSignature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", params, got) {
		t.Fatal("ValidSignature() rejected its own signature")
	}
	if ValidSignature("12345", "https://mycompany.com/other", params, got) {
		t.Fatal("signature must bind the URL")
	}
	if ValidSignature("", "https://mycompany.com/myapp.php?foo=1&bar=2", params, got) {
		t.Fatal("empty token must never validate")
	}
}

func inboundRequest(t *testing.T, form url.Values, signature string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return req
}

func newInboundAdapter() *Adapter {
	return NewAdapter(logger.Discard(), Config{
		AuthToken:         "secret",
		PublicBaseURL:     "https://inbox.example.com/",
		ValidateSignature: true,
	}, nil)
}

func TestVerifyInboundSMS(t *testing.T) {
	form := url.Values{
		"From":       {"+15551234567"},
		"To":         {"+15557654321"},
		"Body":       {"Hi"},
		"MessageSid": {"SM123"},
	}
	sig := Signature("secret", "https://inbox.example.com/webhooks/twilio", form)

	ev, err := newInboundAdapter().VerifyInbound(inboundRequest(t, form, sig))
	require.NoError(t, err)
	assert.Equal(t, channel.SMS, ev.Channel)
	assert.Equal(t, "+15551234567", ev.ExternalAddress)
	assert.Equal(t, "Hi", ev.Body)
	assert.Equal(t, "SM123", ev.ProviderMessageID)
}

func TestVerifyInboundWhatsAppWithMedia(t *testing.T) {
	form := url.Values{
		"From":        {"whatsapp:+15551234567"},
		"ProfileName": {"Ana"},
		"Body":        {""},
		"MessageSid":  {"MM9"},
		"NumMedia":    {"2"},
		"MediaUrl0":   {"https://media.example/a.jpg"},
		"MediaUrl1":   {"https://media.example/b.jpg"},
	}
	sig := Signature("secret", "https://inbox.example.com/webhooks/twilio", form)

	ev, err := newInboundAdapter().VerifyInbound(inboundRequest(t, form, sig))
	require.NoError(t, err)
	assert.Equal(t, channel.WhatsApp, ev.Channel)
	assert.Equal(t, "Ana", ev.DisplayName)
	assert.Equal(t, []string{"https://media.example/a.jpg", "https://media.example/b.jpg"}, ev.MediaRefs)
}

func TestVerifyInboundRejectsForgery(t *testing.T) {
	form := url.Values{"From": {"+15551234567"}, "Body": {"Hi"}}
	forged := Signature("wrong-token", "https://inbox.example.com/webhooks/twilio", form)

	_, err := newInboundAdapter().VerifyInbound(inboundRequest(t, form, forged))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	_, err = newInboundAdapter().VerifyInbound(inboundRequest(t, form, ""))
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestVerifyInboundWithoutValidation(t *testing.T) {
	a := NewAdapter(logger.Discard(), Config{}, nil)
	form := url.Values{"From": {"+15551234567"}, "Body": {"Hi"}}
	ev, err := a.VerifyInbound(inboundRequest(t, form, ""))
	require.NoError(t, err)
	assert.Equal(t, "Hi", ev.Body)

	_, err = a.VerifyInbound(inboundRequest(t, url.Values{"Body": {"x"}}, ""))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestVerifyStatusCallback(t *testing.T) {
	form := url.Values{
		"MessageSid":    {"SM77"},
		"MessageStatus": {"undelivered"},
		"To":            {"whatsapp:+15551234567"},
		"ErrorCode":     {"63016"},
	}
	sig := Signature("secret", "https://inbox.example.com/webhooks/twilio/status", form)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, sig)

	cb, err := newInboundAdapter().VerifyStatusCallback(req)
	require.NoError(t, err)
	assert.Equal(t, "SM77", cb.ProviderMessageID)
	assert.Equal(t, "FAILED", cb.Status)
	assert.Equal(t, channel.WhatsApp, cb.Channel)
	assert.Equal(t, "", MapStatus("queued"))
}

func TestSendSuccess(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Messages.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"sid":"SM42","status":"queued"}`)
	}))
	defer srv.Close()

	a := NewAdapter(logger.Discard(), Config{
		AccountSID:   "AC1",
		AuthToken:    "tok",
		FromNumber:   "+15550000000",
		WhatsAppFrom: "+15550000001",
		APIBaseURL:   srv.URL,
	}, srv.Client())

	receipt, err := a.Send(context.Background(), channel.OutboundMessage{
		Channel:   channel.WhatsApp,
		To:        "+15551234567",
		Body:      "Hello",
		MediaRefs: []string{"https://media.example/x.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SM42", receipt.ProviderMessageID)
	assert.Equal(t, "whatsapp:+15551234567", gotForm.Get("To"))
	assert.Equal(t, "whatsapp:+15550000001", gotForm.Get("From"))
	assert.Equal(t, "https://media.example/x.png", gotForm.Get("MediaUrl"))
}

func TestSendClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   channel.SendErrorKind
	}{
		{"invalid to", http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number"}`, channel.InvalidAddress},
		{"whatsapp not user", http.StatusBadRequest, `{"code":63003,"message":"Channel could not find To address"}`, channel.InvalidAddress},
		{"too many requests", http.StatusTooManyRequests, `{"code":20429,"message":"Too Many Requests"}`, channel.RateLimited},
		{"server error", http.StatusServiceUnavailable, `{}`, channel.ProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			a := NewAdapter(logger.Discard(), Config{AccountSID: "AC1", FromNumber: "+15550000000", APIBaseURL: srv.URL}, srv.Client())
			_, err := a.Send(context.Background(), channel.OutboundMessage{Channel: channel.SMS, To: "+15551234567", Body: "x"})
			var se *channel.SendError
			require.True(t, errors.As(err, &se), "expected *SendError, got %v", err)
			assert.Equal(t, tt.kind, se.Kind)
		})
	}
}

func TestSendUnconfigured(t *testing.T) {
	a := NewAdapter(logger.Discard(), Config{}, nil)
	_, err := a.Send(context.Background(), channel.OutboundMessage{Channel: channel.SMS, To: "+15551234567"})
	assert.Equal(t, channel.ProviderUnavailable, channel.AsSendError(err).Kind)
}
