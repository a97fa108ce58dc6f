package channel

import (
	"testing"

	"github.com/unifiedinbox/inbox/internal/apperr"
)

func TestNormalizePhone(t *testing.T) {
	n := AddressNormalizer{DefaultCountryCode: "1"}
	tests := []struct {
		name    string
		channel Type
		raw     string
		want    string
		wantErr bool
	}{
		{"e164", SMS, "+15551234567", "+15551234567", false},
		{"national", SMS, "5551234567", "+15551234567", false},
		{"national with code", SMS, "15551234567", "+15551234567", false},
		{"formatted", SMS, "(555) 123-4567", "+15551234567", false},
		{"dotted international", SMS, "+1.555.123.4567", "+15551234567", false},
		{"whatsapp prefix", WhatsApp, "whatsapp:+15551234567", "+15551234567", false},
		{"double zero", SMS, "0044 20 7946 0958", "+442079460958", false},
		{"foreign e164", SMS, "+442079460958", "+442079460958", false},
		{"letters", SMS, "555-CALL-NOW", "", true},
		{"too short", SMS, "+1234", "", true},
		{"too long", SMS, "+1234567890123456", "", true},
		{"empty", SMS, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.channel, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				if !apperr.Is(err, apperr.KindValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizePhoneWithoutDefaultCountry(t *testing.T) {
	n := AddressNormalizer{}
	if _, err := n.Normalize(SMS, "5551234567"); err == nil {
		t.Fatal("expected error for national number without a default country code")
	}
	got, err := n.Normalize(SMS, "+15551234567")
	if err != nil || got != "+15551234567" {
		t.Fatalf("Normalize() = %q, %v", got, err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	n := AddressNormalizer{}
	got, err := n.Normalize(Email, "Jane Doe <Jane.Doe@Example.COM>")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got != "jane.doe@example.com" {
		t.Fatalf("Normalize() = %q", got)
	}
	if _, err := n.Normalize(Email, "not an address"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseType(t *testing.T) {
	for raw, want := range map[string]Type{"SMS": SMS, " whatsapp ": WhatsApp, "Email": Email} {
		got, err := ParseType(raw)
		if err != nil || got != want {
			t.Fatalf("ParseType(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseType("fax"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
