package llm

import (
	"context"
	"time"
)

// MockProvider implements Provider for testing. It returns a fixed response
// and records the prompts it was given.
type MockProvider struct {
	FixedContent string
	PingErr      error
	GenerateErr  error

	LastSystemPrompt string
	LastUserPrompt   string
	Calls            int
}

// NewMockProvider creates a mock provider with a canned response body.
func NewMockProvider(content string) *MockProvider {
	return &MockProvider{FixedContent: content}
}

func (p *MockProvider) Name() string { return "Mock" }

func (p *MockProvider) Ping(_ context.Context) error {
	return p.PingErr
}

func (p *MockProvider) Generate(_ context.Context, systemPrompt, userPrompt string, _ Options) (*Response, error) {
	p.Calls++
	p.LastSystemPrompt = systemPrompt
	p.LastUserPrompt = userPrompt
	if p.GenerateErr != nil {
		return nil, p.GenerateErr
	}
	return &Response{
		Content:    p.FixedContent,
		Model:      "mock",
		TokensUsed: 100,
		Duration:   time.Millisecond,
		StopReason: "stop",
	}, nil
}
