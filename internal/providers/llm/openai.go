package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI talks to the OpenAI chat completions API, or to any compatible
// endpoint (OpenRouter) when baseURL is set.
type OpenAI struct {
	client *openai.Client
}

func NewOpenAI(apiKey, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Close() error { return nil }

func (p *OpenAI) Complete(ctx context.Context, model string, messages []Message, maxTokens int) (Result, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, p.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, &Error{Provider: p.Name(), Status: 502, Err: errors.New("empty choices")}
	}

	return Result{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAI) wrap(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Provider: p.Name(), Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{Provider: p.Name(), Status: reqErr.HTTPStatusCode, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Provider: p.Name(), Status: 0, Err: err}
}
