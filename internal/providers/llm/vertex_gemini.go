package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"
)

type VertexGemini struct {
	client *vertexgenai.Client
}

func NewVertexGemini(ctx context.Context, projectID, location string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}
	return &VertexGemini{client: c}, nil
}

func (p *VertexGemini) Name() string { return "vertex" }

func (p *VertexGemini) Close() error { return p.client.Close() }

func (p *VertexGemini) Complete(ctx context.Context, model string, messages []Message, maxTokens int) (Result, error) {
	m := p.client.GenerativeModel(model)
	if maxTokens > 0 {
		mt := int32(maxTokens)
		m.MaxOutputTokens = &mt
	}

	// Gemini takes the system prompt separately and the rest as chat history.
	var history []*vertexgenai.Content
	last := ""
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			m.SystemInstruction = &vertexgenai.Content{
				Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)},
			}
		case "assistant":
			history = append(history, &vertexgenai.Content{
				Role:  "model",
				Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)},
			})
		default:
			history = append(history, &vertexgenai.Content{
				Role:  "user",
				Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)},
			})
			last = msg.Content
		}
	}
	if len(history) > 0 && history[len(history)-1].Role == "user" {
		history = history[:len(history)-1]
	}

	cs := m.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, vertexgenai.Text(last))
	if err != nil {
		return Result{}, p.wrap(err)
	}

	out := ""
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				out += string(t)
			}
		}
	}
	if out == "" {
		return Result{}, &Error{Provider: p.Name(), Status: 502, Err: errors.New("empty candidates")}
	}

	res := Result{Text: out}
	if resp.UsageMetadata != nil {
		res.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		res.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return res, nil
}

func (p *VertexGemini) wrap(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &Error{Provider: p.Name(), Status: gerr.Code, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Provider: p.Name(), Status: 0, Err: err}
}
