// Package llm abstracts the optional text-generation collaborator used
// to paraphrase outreach messages.
package llm

import (
	"context"
	"os"
	"strconv"
	"time"
)

// Message is a chat message sent to the model.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Options configures a single completion request.
type Options struct {
	MaxTokens   int64
	Temperature float64
}

// Response is the result of a completion.
type Response struct {
	Content      string
	FinishReason string
	PromptTokens int64
	OutputTokens int64
}

// Provider abstracts an LLM backend (OpenAI, Ollama, vLLM, etc.).
type Provider interface {
	// Complete sends messages and returns a full response.
	Complete(ctx context.Context, messages []Message, opts Options) (*Response, error)

	// Name returns the provider name (e.g. "openai").
	Name() string

	// Available reports whether the provider is configured and ready.
	Available() bool
}

// Config holds provider configuration.
type Config struct {
	APIKey      string
	Model       string
	Endpoint    string // base URL override (for Ollama, vLLM, Azure)
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
}

// ConfigFromEnv reads provider configuration from environment variables.
func ConfigFromEnv() Config {
	maxTokens := int64(1024)
	if v := os.Getenv("POSTVENTA_LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxTokens = n
		}
	}

	temperature := 0.6
	if v := os.Getenv("POSTVENTA_LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			temperature = f
		}
	}

	model := os.Getenv("POSTVENTA_LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeout := 25 * time.Second
	if v := os.Getenv("POSTVENTA_LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}

	return Config{
		APIKey:      os.Getenv("POSTVENTA_LLM_API_KEY"),
		Model:       model,
		Endpoint:    os.Getenv("POSTVENTA_LLM_ENDPOINT"),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Timeout:     timeout,
	}
}
