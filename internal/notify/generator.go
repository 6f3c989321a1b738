// internal/notify/generator.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	httpclient "admission-orchestrator/internal/common/http"
)

// GenerateRequest carries everything a text generator needs to draft a
// personalized message body.
type GenerateRequest struct {
	Purpose          string   `json:"purpose"`
	RecipientContext string   `json:"recipient_context"`
	Status           string   `json:"status"`
	Details          string   `json:"details"`
	Snippets         []string `json:"knowledge_snippets,omitempty"`
}

// Generator drafts a message body from a request. Implementations are
// collaborators: failures are expected and the dispatcher falls back to
// templates.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// OllamaGenerator drafts bodies with a local Ollama model.
type OllamaGenerator struct {
	llm *ollama.LLM
}

func NewOllamaGenerator(baseURL, model string) (*OllamaGenerator, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama generator: %w", err)
	}
	return &OllamaGenerator{llm: llm}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := llms.GenerateFromSinglePrompt(ctx, g.llm, buildPrompt(req))
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(body), nil
}

// HTTPGenerator delegates drafting to an external text service.
type HTTPGenerator struct {
	client   *httpclient.Client
	endpoint string
}

func NewHTTPGenerator(client *httpclient.Client, endpoint string) *HTTPGenerator {
	return &HTTPGenerator{client: client, endpoint: endpoint}
}

type generateResponse struct {
	Body string `json:"body"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var resp generateResponse
	if err := g.client.PostJSON(ctx, g.endpoint, req, &resp); err != nil {
		return "", fmt.Errorf("text service: %w", err)
	}
	if strings.TrimSpace(resp.Body) == "" {
		return "", fmt.Errorf("text service returned empty body")
	}
	return resp.Body, nil
}

func buildPrompt(req GenerateRequest) string {
	var b strings.Builder
	b.WriteString("You are an admissions office assistant. Write a short, professional message to an applicant.\n")
	fmt.Fprintf(&b, "Purpose: %s\n", req.Purpose)
	fmt.Fprintf(&b, "Recipient: %s\n", req.RecipientContext)
	fmt.Fprintf(&b, "Application status: %s\n", req.Status)
	fmt.Fprintf(&b, "Decision details: %s\n", req.Details)
	if len(req.Snippets) > 0 {
		b.WriteString("Relevant policy excerpts:\n")
		for _, s := range req.Snippets {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	b.WriteString("Reply with only the message body.")
	return b.String()
}
