// Package notify delivers seller alerts for freshly generated
// recommendations. Delivery is best effort and runs off the request
// path through a bounded queue.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"unicode/utf8"

	"postventa/internal/domain"
	"postventa/internal/observability"
)

// Alert is the seller-facing notification for one recommendation.
type Alert struct {
	RecommendationID int64
	CustomerName     string
	Preview          string
	Options          []AlertOption
}

// AlertOption is one suggested product line in the alert.
type AlertOption struct {
	Name string
	Unit string
	SKU  string
}

// AlertFromRecommendation builds an alert from a persisted
// recommendation. The justification is truncated to a preview on a
// rune boundary so multi-byte text stays valid UTF-8.
func AlertFromRecommendation(rec domain.Recommendation) Alert {
	preview := rec.Justification
	if len(preview) > 280 {
		cut := 277
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut] + "..."
	}
	opts := make([]AlertOption, 0, len(rec.Details))
	for _, d := range rec.Details {
		opts = append(opts, AlertOption{Name: d.ProductName, Unit: d.Unit, SKU: d.SKU})
	}
	return Alert{
		RecommendationID: rec.ID,
		CustomerName:     rec.CustomerName,
		Preview:          preview,
		Options:          opts,
	}
}

// Dispatcher delivers one alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert Alert) error
}

// SMTPConfig holds mail settings.
type SMTPConfig struct {
	Host       string
	Port       string
	Username   string
	Password   string
	From       string
	Recipients []string
}

// SMTPConfigFromEnv reads mail settings from the environment.
// Recipients are a comma-separated list of seller addresses.
func SMTPConfigFromEnv() SMTPConfig {
	var recipients []string
	for _, r := range strings.Split(os.Getenv("POSTVENTA_SMTP_RECIPIENTS"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	port := os.Getenv("POSTVENTA_SMTP_PORT")
	if port == "" {
		port = "587"
	}
	return SMTPConfig{
		Host:       os.Getenv("POSTVENTA_SMTP_HOST"),
		Port:       port,
		Username:   os.Getenv("POSTVENTA_SMTP_USER"),
		Password:   os.Getenv("POSTVENTA_SMTP_PASSWORD"),
		From:       os.Getenv("POSTVENTA_SMTP_FROM"),
		Recipients: recipients,
	}
}

// Configured reports whether enough settings exist to send mail.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != "" && len(c.Recipients) > 0
}

// SMTPDispatcher emails alerts to the configured seller addresses.
type SMTPDispatcher struct {
	cfg SMTPConfig
	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPDispatcher creates a mail dispatcher.
func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg, send: smtp.SendMail}
}

var _ Dispatcher = (*SMTPDispatcher)(nil)

func (d *SMTPDispatcher) Dispatch(_ context.Context, alert Alert) error {
	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}
	msg := buildMessage(d.cfg.From, d.cfg.Recipients, alert)
	addr := d.cfg.Host + ":" + d.cfg.Port
	if err := d.send(addr, auth, d.cfg.From, d.cfg.Recipients, msg); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, alert Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: New outreach suggestion #%d for %s\r\n", alert.RecommendationID, alert.CustomerName)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Recommendation #%d for %s\r\n\r\n", alert.RecommendationID, alert.CustomerName)
	b.WriteString("Suggested products:\r\n")
	for _, opt := range alert.Options {
		line := "  - " + opt.Name
		if opt.Unit != "" {
			line += " (" + opt.Unit + ")"
		}
		if opt.SKU != "" {
			line += " [" + opt.SKU + "]"
		}
		b.WriteString(line + "\r\n")
	}
	b.WriteString("\r\nSuggested message:\r\n")
	b.WriteString(alert.Preview)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogDispatcher writes alerts to the log. Used when SMTP is not
// configured so notifications remain observable in development.
type LogDispatcher struct {
	logger observability.Logger
}

// NewLogDispatcher creates a log-only dispatcher.
func NewLogDispatcher(logger observability.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.WithComponent("notify")}
}

var _ Dispatcher = (*LogDispatcher)(nil)

func (d *LogDispatcher) Dispatch(ctx context.Context, alert Alert) error {
	d.logger.InfoContext(ctx, "seller alert",
		"recommendation_id", alert.RecommendationID,
		"customer", alert.CustomerName,
		"options", len(alert.Options))
	return nil
}
