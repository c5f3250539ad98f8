package outreach

import (
	"context"
	"errors"
	"strings"
	"testing"

	"postventa/internal/domain"
	"postventa/internal/observability"
	"postventa/internal/outreach/llm"
)

func testOptions() []Option {
	return []Option{
		{Product: domain.Product{ID: 1, Name: "Dog food 15kg", Unit: "bag", SKU: "DF-15"}, Score: 0.41, Reason: OptionDue},
		{Product: domain.Product{ID: 2, Name: "Chew toy"}, Score: 0.1, Reason: OptionGeneric},
	}
}

func TestTemplateComposerMentionsAllOptions(t *testing.T) {
	msg, err := TemplateComposer{}.Compose(context.Background(), ComposeInput{
		CustomerName: "Ana Lopez",
		Reason:       string(domain.ReasonCycle),
		HasHistory:   true,
		Options:      testOptions(),
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for _, want := range []string{"Ana Lopez", "Dog food 15kg", "(bag)", "[DF-15]", "Chew toy"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestTemplateComposerOpeners(t *testing.T) {
	tests := []struct {
		name string
		in   ComposeInput
		want string
	}{
		{
			name: "no history",
			in:   ComposeInput{CustomerName: "Ana", Reason: string(domain.ReasonNoPurchase)},
			want: "Welcome aboard",
		},
		{
			name: "no history old",
			in:   ComposeInput{CustomerName: "Ana", Reason: string(domain.ReasonNoPurchaseOld)},
			want: "a while back",
		},
		{
			name: "cycle due",
			in: ComposeInput{CustomerName: "Ana", Reason: string(domain.ReasonCycle),
				HasHistory: true, DaysSinceLastPurchase: 28, TypicalCycleDays: 30},
			want: "28 days",
		},
		{
			name: "dormant",
			in: ComposeInput{CustomerName: "Ana", Reason: string(domain.ReasonDormant),
				HasHistory: true, DaysSinceLastPurchase: 75},
			want: "missed you",
		},
		{
			name: "generic",
			in:   ComposeInput{CustomerName: "Ana", HasHistory: true},
			want: "suggestions just for you",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Options = testOptions()
			msg, err := TemplateComposer{}.Compose(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Compose: %v", err)
			}
			if !strings.Contains(msg, tt.want) {
				t.Errorf("expected opener containing %q:\n%s", tt.want, msg)
			}
		})
	}
}

func TestTemplateComposerEmptyName(t *testing.T) {
	msg, err := TemplateComposer{}.Compose(context.Background(), ComposeInput{Options: testOptions()})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(msg, "Hi there!") {
		t.Errorf("expected neutral greeting:\n%s", msg)
	}
}

type fakeProvider struct {
	content string
	err     error
	calls   int
}

func (f *fakeProvider) Complete(_ context.Context, _ []llm.Message, _ llm.Options) (*llm.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Available() bool { return true }

func newTestLogger() observability.Logger {
	return observability.NewLogger(observability.Config{Level: "error", Format: "text"})
}

func TestGenerativeComposerUsesProvider(t *testing.T) {
	provider := &fakeProvider{content: "Hola Ana, your Dog food 15kg is waiting!"}
	c := NewGenerativeComposer(provider, llm.Config{MaxTokens: 256}, newTestLogger())

	msg, err := c.Compose(context.Background(), ComposeInput{CustomerName: "Ana", Options: testOptions()})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if msg != provider.content {
		t.Errorf("expected provider content, got %q", msg)
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.calls)
	}
}

func TestGenerativeComposerFallsBackOnError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	c := NewGenerativeComposer(provider, llm.Config{}, newTestLogger())

	msg, err := c.Compose(context.Background(), ComposeInput{CustomerName: "Ana", Options: testOptions()})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(msg, "Dog food 15kg") {
		t.Errorf("fallback message missing product:\n%s", msg)
	}
}

func TestGenerativeComposerFallsBackOnEmptyContent(t *testing.T) {
	provider := &fakeProvider{content: "   "}
	c := NewGenerativeComposer(provider, llm.Config{}, newTestLogger())

	msg, err := c.Compose(context.Background(), ComposeInput{CustomerName: "Ana", Options: testOptions()})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(msg, "Hi Ana!") {
		t.Errorf("expected template fallback:\n%s", msg)
	}
}
