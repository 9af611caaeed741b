// Package groq implements llm.Provider for the Groq API and other
// OpenAI-compatible chat-completions endpoints.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/observability"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// Client implements llm.Provider for Groq (and any OpenAI-compatible API).
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	embedModel string
	http       *http.Client
}

// New creates a Groq-compatible provider.
func New(apiKey, model, baseURL, embedModel string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		embedModel: embedModel,
		http:       &http.Client{Timeout: 45 * time.Second},
	}
}

func (c *Client) Name() string { return "groq" }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	ctx, span := observability.StartLLMSpan(ctx, c.Name(), c.model)
	defer span.End()
	start := time.Now()

	var msgs []map[string]string
	promptChars := len(prompt.SystemPrompt)
	if prompt.SystemPrompt != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": prompt.SystemPrompt})
	}
	for _, m := range prompt.Messages {
		msgs = append(msgs, map[string]string{"role": string(m.Role), "content": m.Content})
		promptChars += len(m.Content)
	}
	observability.Audit().LogLLMRequest(ctx, c.Name(), c.model, promptChars)

	body := map[string]any{
		"model":    c.model,
		"messages": msgs,
		"stream":   false,
	}
	if opts != nil {
		if opts.MaxTokens != nil {
			body["max_tokens"] = *opts.MaxTokens
		}
		if opts.Temperature != nil {
			body["temperature"] = *opts.Temperature
		}
		if len(opts.StopSeqs) > 0 {
			body["stop"] = opts.StopSeqs
		}
	}

	respBody, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		observability.RecordError(span, err)
		observability.Metrics().RecordLLMRequest(time.Since(start), 0, err)
		observability.Audit().LogLLMError(ctx, c.Name(), c.model, err)
		return nil, err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("groq: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		observability.RecordError(span, llm.ErrNoChoices)
		observability.Audit().LogLLMError(ctx, c.Name(), c.model, llm.ErrNoChoices)
		return nil, llm.ErrNoChoices
	}

	observability.RecordLLMMetrics(span, result.Usage.PromptTokens, result.Usage.CompletionTokens, time.Since(start))
	observability.Metrics().RecordLLMRequest(time.Since(start), result.Usage.PromptTokens+result.Usage.CompletionTokens, nil)
	observability.Audit().LogLLMResponse(ctx, c.Name(), c.model, time.Since(start), result.Usage.PromptTokens, result.Usage.CompletionTokens)

	return &llm.Response{
		Content:      result.Choices[0].Message.Content,
		Model:        result.Model,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		StopReason:   result.Choices[0].FinishReason,
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embedModel == "" {
		return nil, fmt.Errorf("groq: no embedding model configured")
	}

	ctx, span := observability.StartEmbeddingSpan(ctx, len(texts))
	defer span.End()
	start := time.Now()

	body := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}
	respBody, err := c.post(ctx, "/embeddings", body)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("groq embed: decode response: %w", err)
	}

	embeddings := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		embeddings[i] = d.Embedding
	}
	dimension := 0
	if len(embeddings) > 0 {
		dimension = len(embeddings[0])
	}
	observability.RecordEmbeddingResult(span, dimension, time.Since(start))
	return embeddings, nil
}

// post sends a JSON request and returns the raw body of a 200 response.
// Any other status becomes an *llm.APIError carrying the provider's
// error.message, which for 429s includes the advisory retry wait.
func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}
	return respBody, nil
}

// errorMessage pulls error.message out of an error body, falling back to the
// raw body when it isn't the expected JSON shape.
func errorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(body)
}
