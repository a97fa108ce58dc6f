// Package twilio implements the SMS and WhatsApp channel adapter against the
// Twilio Messages REST API and its form-encoded webhooks.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/logger"
)

// Config holds credentials and addressing for one Twilio account.
type Config struct {
	AccountSID        string
	AuthToken         string
	FromNumber        string
	WhatsAppFrom      string
	APIBaseURL        string
	PublicBaseURL     string
	ValidateSignature bool
}

// Adapter sends via the REST API and verifies inbound webhooks.
type Adapter struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewAdapter creates an adapter. client may be nil.
func NewAdapter(log *slog.Logger, cfg Config, client *http.Client) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		client = &http.Client{}
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.twilio.com"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &Adapter{
		cfg:    cfg,
		client: client,
		logger: log.With(slog.String("adapter", "twilio")),
		now:    time.Now,
	}
}

type messageResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status"`
	MoreInfo string `json:"more_info"`
}

// Send posts one message. Errors are *channel.SendError.
func (a *Adapter) Send(ctx context.Context, msg channel.OutboundMessage) (channel.Receipt, error) {
	from := a.cfg.FromNumber
	to := msg.To
	if msg.Channel == channel.WhatsApp {
		from = a.cfg.WhatsAppFrom
		if from == "" {
			from = a.cfg.FromNumber
		}
		from = channel.WhatsAppAddress(from)
		to = channel.WhatsAppAddress(to)
	}
	if strings.TrimSpace(from) == "" || a.cfg.AccountSID == "" {
		return channel.Receipt{}, &channel.SendError{Kind: channel.ProviderUnavailable, Message: "twilio sender not configured"}
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	if msg.Body != "" {
		form.Set("Body", msg.Body)
	}
	for _, media := range msg.MediaRefs {
		form.Add("MediaUrl", media)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", a.cfg.APIBaseURL, url.PathEscape(a.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return channel.Receipt{}, &channel.SendError{Kind: channel.ProviderUnavailable, Err: err}
	}
	req.SetBasicAuth(a.cfg.AccountSID, a.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return channel.Receipt{}, &channel.SendError{Kind: channel.ProviderUnavailable, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return channel.Receipt{}, &channel.SendError{Kind: channel.ProviderUnavailable, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var res messageResource
		if err := json.Unmarshal(body, &res); err != nil {
			return channel.Receipt{}, &channel.SendError{Kind: channel.ProviderUnavailable, Message: "decode message resource", Err: err}
		}
		a.logger.Debug("message accepted",
			slog.String("channel", msg.Channel.String()),
			slog.String("sid", res.SID),
			slog.String("status", res.Status),
		)
		return channel.Receipt{ProviderMessageID: res.SID, ProviderStatus: res.Status, AcceptedAt: a.now()}, nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	return channel.Receipt{}, classify(resp, apiErr)
}

// Address-level rejections: invalid To, not SMS capable, opted out, region
// not enabled, not a WhatsApp user.
var invalidAddressCodes = map[int]bool{
	21211: true,
	21217: true,
	21408: true,
	21610: true,
	21612: true,
	21614: true,
	63003: true,
}

func classify(resp *http.Response, apiErr apiError) *channel.SendError {
	se := &channel.SendError{
		Message: apiErr.Message,
		Code:    strconv.Itoa(apiErr.Code),
	}
	if apiErr.Code == 0 {
		se.Code = ""
	}
	if se.Message == "" {
		se.Message = resp.Status
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || apiErr.Code == 20429:
		se.Kind = channel.RateLimited
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	case invalidAddressCodes[apiErr.Code]:
		se.Kind = channel.InvalidAddress
	case resp.StatusCode == http.StatusBadRequest:
		se.Kind = channel.InvalidAddress
	default:
		se.Kind = channel.ProviderUnavailable
	}
	return se
}

// VerifyInbound checks the signature of an inbound message webhook and
// parses it into an InboundEvent.
func (a *Adapter) VerifyInbound(r *http.Request) (channel.InboundEvent, error) {
	params, err := a.verify(r)
	if err != nil {
		return channel.InboundEvent{}, err
	}

	from := strings.TrimSpace(params.Get("From"))
	if from == "" {
		return channel.InboundEvent{}, apperr.Validation("twilio inbound", "missing From")
	}
	ev := channel.InboundEvent{
		Channel:           channel.SMS,
		ExternalAddress:   from,
		DisplayName:       strings.TrimSpace(params.Get("ProfileName")),
		Body:              params.Get("Body"),
		ProviderMessageID: firstNonEmpty(params.Get("MessageSid"), params.Get("SmsMessageSid")),
		ReceivedAt:        a.now(),
	}
	if channel.IsWhatsAppAddress(from) {
		ev.Channel = channel.WhatsApp
	}
	if n, err := strconv.Atoi(params.Get("NumMedia")); err == nil {
		for i := 0; i < n; i++ {
			if media := strings.TrimSpace(params.Get(fmt.Sprintf("MediaUrl%d", i))); media != "" {
				ev.MediaRefs = append(ev.MediaRefs, media)
			}
		}
	}
	if strings.TrimSpace(ev.Body) == "" && len(ev.MediaRefs) == 0 {
		return channel.InboundEvent{}, apperr.Validation("twilio inbound", "empty message")
	}
	a.logger.Debug("inbound verified",
		slog.String("channel", ev.Channel.String()),
		slog.String("sid", ev.ProviderMessageID),
		slog.String("body", logger.Summarize(ev.Body)),
	)
	return ev, nil
}

// VerifyStatusCallback checks and parses a delivery status callback.
// Status is empty for provider states that have no canonical counterpart.
func (a *Adapter) VerifyStatusCallback(r *http.Request) (channel.StatusCallback, error) {
	params, err := a.verify(r)
	if err != nil {
		return channel.StatusCallback{}, err
	}
	sid := firstNonEmpty(params.Get("MessageSid"), params.Get("SmsSid"))
	if sid == "" {
		return channel.StatusCallback{}, apperr.Validation("twilio status", "missing MessageSid")
	}
	cb := channel.StatusCallback{
		Channel:           channel.SMS,
		ProviderMessageID: sid,
		Status:            MapStatus(firstNonEmpty(params.Get("MessageStatus"), params.Get("SmsStatus"))),
		ErrorCode:         params.Get("ErrorCode"),
	}
	if channel.IsWhatsAppAddress(params.Get("To")) || channel.IsWhatsAppAddress(params.Get("From")) {
		cb.Channel = channel.WhatsApp
	}
	return cb, nil
}

// MapStatus converts a provider message status to the canonical one.
func MapStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "sent":
		return "SENT"
	case "delivered":
		return "DELIVERED"
	case "read":
		return "READ"
	case "failed", "undelivered":
		return "FAILED"
	default:
		return ""
	}
}

func (a *Adapter) verify(r *http.Request) (url.Values, error) {
	if err := r.ParseForm(); err != nil {
		return nil, apperr.Validation("twilio webhook", "malformed form body")
	}
	params := r.PostForm
	if !a.cfg.ValidateSignature {
		return params, nil
	}
	fullURL := requestURL(a.cfg.PublicBaseURL, r)
	if !ValidSignature(a.cfg.AuthToken, fullURL, params, r.Header.Get(SignatureHeader)) {
		a.logger.Warn("rejected webhook with bad signature", slog.String("url", fullURL))
		return nil, apperr.Auth("twilio webhook", "signature mismatch")
	}
	return params, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
