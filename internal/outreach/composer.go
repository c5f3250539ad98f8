package outreach

import (
	"context"
	"fmt"
	"strings"

	"postventa/internal/observability"
	"postventa/internal/outreach/llm"
)

// ComposeInput carries everything a composer may use. Composers must
// not invent products beyond Options.
type ComposeInput struct {
	CustomerName          string
	Reason                string // candidate reason: cycle, dormant, no_purchase, no_purchase_old
	HasHistory            bool
	DaysSinceLastPurchase int
	TypicalCycleDays      int
	Options               []Option
}

// Composer produces the suggested outreach message for a customer.
type Composer interface {
	Compose(ctx context.Context, in ComposeInput) (string, error)
}

// TemplateComposer builds a deterministic message from fixed openers,
// one bullet per option and a closing call to action. Always available.
type TemplateComposer struct{}

var _ Composer = TemplateComposer{}

func (TemplateComposer) Compose(_ context.Context, in ComposeInput) (string, error) {
	var b strings.Builder
	b.WriteString(opener(in))
	b.WriteString("\n\n")
	for _, opt := range in.Options {
		b.WriteString("- ")
		b.WriteString(optionLine(opt))
		b.WriteString("\n")
	}
	b.WriteString("\nWant me to reserve anything for you? I can send photos and prices right away.")
	return b.String(), nil
}

func opener(in ComposeInput) string {
	name := in.CustomerName
	if name == "" {
		name = "there"
	}
	switch {
	case !in.HasHistory && in.Reason == "no_purchase_old":
		return fmt.Sprintf("Hi %s! You signed up with us a while back and we would love to finally treat you. Here is what other customers are loving right now:", name)
	case !in.HasHistory:
		return fmt.Sprintf("Hi %s! Welcome aboard. To get you started, these are our most popular picks:", name)
	case in.Reason == "cycle":
		if in.TypicalCycleDays > 0 {
			return fmt.Sprintf("Hi %s! It has been about %d days since your last order, which is usually when you restock. A few things you might be running low on:", name, in.DaysSinceLastPurchase)
		}
		return fmt.Sprintf("Hi %s! Based on your usual rhythm it might be time to restock. A few things you might be running low on:", name)
	case in.Reason == "dormant":
		return fmt.Sprintf("Hi %s! We have missed you. It has been %d days since your last order and we set a few things aside you might like:", name, in.DaysSinceLastPurchase)
	default:
		return fmt.Sprintf("Hi %s! We put together a few suggestions just for you:", name)
	}
}

func optionLine(opt Option) string {
	var b strings.Builder
	b.WriteString(opt.Product.Name)
	if opt.Product.Unit != "" {
		b.WriteString(" (")
		b.WriteString(opt.Product.Unit)
		b.WriteString(")")
	}
	if opt.Product.SKU != "" {
		b.WriteString(" [")
		b.WriteString(opt.Product.SKU)
		b.WriteString("]")
	}
	if clause := reasonClause(opt.Reason); clause != "" {
		b.WriteString(" - ")
		b.WriteString(clause)
	}
	return b.String()
}

func reasonClause(reason string) string {
	switch reason {
	case OptionDue:
		return "probably time to replenish"
	case OptionUpcoming:
		return "coming up for replenishment"
	case OptionFavorite:
		return "your usual favorite"
	case OptionPopular:
		return "a customer favorite lately"
	default:
		return ""
	}
}

// GenerativeComposer asks an LLM to paraphrase the outreach message.
// Any provider failure falls back to the deterministic template, so a
// message is always produced.
type GenerativeComposer struct {
	provider llm.Provider
	fallback TemplateComposer
	logger   observability.Logger
	opts     llm.Options
}

// NewGenerativeComposer wires a provider. Callers should check
// provider.Available() before choosing this strategy.
func NewGenerativeComposer(provider llm.Provider, cfg llm.Config, logger observability.Logger) *GenerativeComposer {
	return &GenerativeComposer{
		provider: provider,
		logger:   logger.WithComponent("composer"),
		opts:     llm.Options{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature},
	}
}

var _ Composer = (*GenerativeComposer)(nil)

const composerSystemPrompt = `You write short, warm WhatsApp-style follow-up messages for a small retail business.
Rules:
- Mention ONLY the products listed. Never invent products, prices or promotions.
- Keep every product name, unit and SKU exactly as given.
- One short greeting, one bullet per product, one closing question.
- Plain text, no markdown headings, under 120 words.`

func (c *GenerativeComposer) Compose(ctx context.Context, in ComposeInput) (string, error) {
	draft, _ := c.fallback.Compose(ctx, in)

	resp, err := c.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: composerSystemPrompt},
		{Role: "user", Content: "Rewrite this outreach draft in a natural, friendly tone. Keep all products:\n\n" + draft},
	}, c.opts)
	if err != nil {
		c.logger.WarnContext(ctx, "llm compose failed, using template", "error", err)
		return draft, nil
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		c.logger.WarnContext(ctx, "llm compose returned empty content, using template")
		return draft, nil
	}
	return out, nil
}
