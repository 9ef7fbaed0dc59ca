// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultMaxTokens bounds the mediator reply.
	DefaultMaxTokens = 900
	// DefaultTemperature favours schema compliance over creativity.
	DefaultTemperature = 0.25
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// Clone returns a copy whose Messages slice can be appended to safely.
func (r *CompletionRequest) Clone() *CompletionRequest {
	c := *r
	c.Messages = append([]ChatMessage(nil), r.Messages...)
	return &c
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles used in ChatMessage.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Options holds provider-independent client settings.
type Options struct {
	Model   string
	BaseURL string
}

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string, opts Options) (Client, error) {
	switch Provider(strings.ToLower(string(provider))) {
	case ProviderOpenAI, "":
		return NewOpenAIClient(apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, opts)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", provider)
	}
}
