package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"unicode/utf8"

	"postventa/internal/domain"
)

func TestAlertFromRecommendationTruncatesPreview(t *testing.T) {
	long := strings.Repeat("x", 400)
	alert := AlertFromRecommendation(domain.Recommendation{ID: 1, Justification: long})
	if len(alert.Preview) != 280 {
		t.Fatalf("expected 280-char preview, got %d", len(alert.Preview))
	}
	if !strings.HasSuffix(alert.Preview, "...") {
		t.Error("expected ellipsis suffix")
	}

	short := AlertFromRecommendation(domain.Recommendation{ID: 2, Justification: "Hi Ana!"})
	if short.Preview != "Hi Ana!" {
		t.Errorf("short justification must pass through, got %q", short.Preview)
	}
}

func TestAlertFromRecommendationTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ñ", 200) // 400 bytes, every rune two bytes
	alert := AlertFromRecommendation(domain.Recommendation{ID: 3, Justification: long})
	if !utf8.ValidString(alert.Preview) {
		t.Fatalf("preview is not valid UTF-8: %q", alert.Preview)
	}
	if !strings.HasSuffix(alert.Preview, "...") {
		t.Error("expected ellipsis suffix")
	}
	if len(alert.Preview) > 280 {
		t.Errorf("preview too long: %d bytes", len(alert.Preview))
	}
	if !strings.HasPrefix(alert.Preview, "ñ") || strings.ContainsRune(alert.Preview, utf8.RuneError) {
		t.Errorf("preview corrupted: %q", alert.Preview)
	}
}

func TestSMTPDispatcherBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	d := NewSMTPDispatcher(SMTPConfig{
		Host:       "mail.example.com",
		Port:       "587",
		From:       "alerts@example.com",
		Recipients: []string{"seller@example.com"},
	})
	d.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	alert := Alert{
		RecommendationID: 12,
		CustomerName:     "Ana Lopez",
		Preview:          "Hi Ana! Time to restock.",
		Options: []AlertOption{
			{Name: "Dog food 15kg", Unit: "bag", SKU: "DF-15"},
			{Name: "Chew toy"},
		},
	}
	if err := d.Dispatch(context.Background(), alert); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if gotAddr != "mail.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "alerts@example.com" || len(gotTo) != 1 || gotTo[0] != "seller@example.com" {
		t.Errorf("envelope mismatch: from %q to %v", gotFrom, gotTo)
	}
	msg := string(gotMsg)
	for _, want := range []string{
		"Subject: New outreach suggestion #12 for Ana Lopez",
		"  - Dog food 15kg (bag) [DF-15]",
		"  - Chew toy",
		"Hi Ana! Time to restock.",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSMTPConfigConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
		want bool
	}{
		{"complete", SMTPConfig{Host: "h", From: "f", Recipients: []string{"r"}}, true},
		{"no host", SMTPConfig{From: "f", Recipients: []string{"r"}}, false},
		{"no from", SMTPConfig{Host: "h", Recipients: []string{"r"}}, false},
		{"no recipients", SMTPConfig{Host: "h", From: "f"}, false},
	}
	for _, tt := range tests {
		if got := tt.cfg.Configured(); got != tt.want {
			t.Errorf("%s: Configured() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher(testLogger())
	if err := d.Dispatch(context.Background(), Alert{RecommendationID: 1}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}
