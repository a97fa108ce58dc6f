package channel

import (
	"net/mail"
	"strings"

	"github.com/unifiedinbox/inbox/internal/apperr"
)

const whatsappPrefix = "whatsapp:"

// AddressNormalizer canonicalizes external addresses before lookup so that
// formatting variants of the same number or mailbox map to one key.
type AddressNormalizer struct {
	// DefaultCountryCode is applied to national-format phone numbers ("1" for NANP).
	DefaultCountryCode string
}

// Normalize returns the canonical address for the channel: E.164 for SMS and
// WhatsApp, the lower-cased bare mailbox for email.
func (n AddressNormalizer) Normalize(t Type, raw string) (string, error) {
	switch t {
	case SMS, WhatsApp:
		return n.normalizePhone(raw)
	case Email:
		return normalizeEmail(raw)
	default:
		return "", apperr.Validation("normalize address", "unsupported channel type: %q", string(t))
	}
}

func (n AddressNormalizer) normalizePhone(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(value), whatsappPrefix) {
		value = strings.TrimSpace(value[len(whatsappPrefix):])
	}
	international := false
	switch {
	case strings.HasPrefix(value, "+"):
		international = true
		value = value[1:]
	case strings.HasPrefix(value, "00"):
		international = true
		value = value[2:]
	}

	var digits strings.Builder
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", apperr.Validation("normalize address", "invalid phone number %q", raw)
		}
	}
	number := digits.String()

	if !international {
		cc := strings.TrimPrefix(strings.TrimSpace(n.DefaultCountryCode), "+")
		if cc == "" {
			return "", apperr.Validation("normalize address", "phone number %q has no country code", raw)
		}
		// "15551234567" with cc "1" already carries the code; "5551234567" does not.
		if !(strings.HasPrefix(number, cc) && len(number) >= len(cc)+10) {
			number = cc + strings.TrimLeft(number, "0")
		}
	}

	// E.164 allows at most 15 digits; anything under 8 is not a routable number.
	if len(number) < 8 || len(number) > 15 || number[0] == '0' {
		return "", apperr.Validation("normalize address", "invalid phone number %q", raw)
	}
	return "+" + number, nil
}

func normalizeEmail(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", apperr.Validation("normalize address", "email address is required")
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", apperr.Validation("normalize address", "invalid email address %q", raw)
	}
	return strings.ToLower(addr.Address), nil
}

// WhatsAppAddress returns the provider form of a WhatsApp number.
func WhatsAppAddress(e164 string) string {
	if strings.HasPrefix(e164, whatsappPrefix) {
		return e164
	}
	return whatsappPrefix + e164
}

// IsWhatsAppAddress reports whether a provider address carries the WhatsApp prefix.
func IsWhatsAppAddress(addr string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(addr)), whatsappPrefix)
}
