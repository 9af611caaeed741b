package llm

import (
	"context"
	"fmt"
	"strings"
)

// RefusalSentence is the fixed sentence the model is instructed to emit
// verbatim when the supplied context cannot answer the question. Treat it as a
// behavioral instruction to the model, not a guaranteed parseable signal.
const RefusalSentence = "I don't have enough information to answer this question based on the provided context."

// systemInstruction is sent with every completion.
const systemInstruction = "You are a highly intelligent, accurate, and helpful AI assistant. " +
	"Always provide clear, concise, and well-structured answers using proper markdown formatting. " +
	"Use bullet points, code blocks, and tables where appropriate. " +
	"If you reference code or examples, format them using markdown. " +
	"Explain your reasoning when needed. " +
	"If you cannot answer based on the given context, respond with: " +
	"\"" + RefusalSentence + "\""

// Generation defaults applied when a client is built without explicit options.
const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
)

// Client is the high-level text-generation handle used by the engine and the
// summarizer. It owns the system instruction, the default generation options
// and output cleanup; transport, retry and rate limiting live in the wrapped
// Provider chain.
type Client struct {
	provider    Provider
	maxTokens   int
	temperature float64
}

// NewClient wraps a provider (normally already decorated with rate limiting
// and retry) with the default generation options.
func NewClient(provider Provider) *Client {
	return NewClientWithOptions(provider, DefaultMaxTokens, DefaultTemperature)
}

// NewClientWithOptions wraps a provider with explicit generation options.
// Non-positive maxTokens and negative temperature fall back to the defaults.
func NewClientWithOptions(provider Provider, maxTokens int, temperature float64) *Client {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if temperature < 0 {
		temperature = DefaultTemperature
	}
	return &Client{provider: provider, maxTokens: maxTokens, temperature: temperature}
}

// Provider exposes the wrapped provider, for embedding.
func (c *Client) Provider() Provider { return c.provider }

// Generate sends a prompt and returns the generated text, trimmed.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	opts := &RequestOptions{}
	if maxTokens > 0 {
		opts.MaxTokens = &maxTokens
	}
	if temperature >= 0 {
		opts.Temperature = &temperature
	}

	resp, err := c.provider.Complete(ctx, UserPrompt(systemInstruction, prompt), opts)
	if err != nil {
		return "", err
	}
	return StripThinkingTags(resp.Content), nil
}

// GenerateWithContext asks the model to answer strictly from the supplied
// context, refusing with RefusalSentence when the context is insufficient.
func (c *Client) GenerateWithContext(ctx context.Context, question, contextText string) (string, error) {
	prompt := fmt.Sprintf(
		"## Context\n%s\n\n## Question\n%s\n\n"+
			"### Instructions\n"+
			"- Answer the question based strictly on the provided context.\n"+
			"- If code is needed, use markdown code blocks.\n"+
			"- Use bullet points and tables if appropriate.\n"+
			"- Provide a clear and well-formatted response.\n"+
			"- If the answer is not in the context, reply with:\n"+
			"  > %s\n\n"+
			"## Answer",
		contextText, question, RefusalSentence,
	)
	return c.Generate(ctx, prompt, c.maxTokens, c.temperature)
}

// IsRefusal reports whether the answer is (or leads with) the refusal sentence.
func IsRefusal(answer string) bool {
	return strings.Contains(answer, RefusalSentence)
}
