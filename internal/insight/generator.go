package insight

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/leetrack/backend/internal/models"
)

// Generator wraps an LLMClient and turns practice problems into
// short written takeaways.
type Generator struct {
	llm   LLMClient
	model string
}

func NewGenerator() *Generator {
	var llm LLMClient
	model := "mock"

	if os.Getenv("MOCK_INSIGHT") == "true" {
		llm = NewMockClient()
		log.Println("Insight generator using mock data")
	} else {
		model = os.Getenv("ANTHROPIC_MODEL")
		if model == "" {
			model = "claude-opus-4-5-20251101"
		}
		llm = NewAPIClient(model)
		log.Println("Insight generator using Anthropic API:", model)
	}

	return &Generator{llm: llm, model: model}
}

// NewGeneratorWithClient is for tests and callers that manage the
// client themselves.
func NewGeneratorWithClient(llm LLMClient, model string) *Generator {
	return &Generator{llm: llm, model: model}
}

func (g *Generator) ModelName() string {
	return g.model
}

// Generate produces a concise insight for one problem.
func (g *Generator) Generate(ctx context.Context, p *models.Problem) (string, error) {
	resp, err := g.llm.Complete(ctx, SystemPrompt(), BuildUserPrompt(p))
	if err != nil {
		return "", fmt.Errorf("generate insight: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("empty insight response")
	}
	return text, nil
}
