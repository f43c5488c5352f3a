package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultModel = "gpt-4o-mini"

// Generator produces persona-conditioned content through the OpenAI API.
type Generator struct {
	apiKey       string
	model        string
	systemPrompt string
}

func NewGenerator(apiKey, model, systemPrompt string) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{apiKey: apiKey, model: model, systemPrompt: systemPrompt}
}

func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	if g.apiKey == "" {
		return domain.GenerateResult{}, fmt.Errorf("openai api key is not configured")
	}

	client := openai.NewClient(
		option.WithAPIKey(g.apiKey),
	)

	var messages []openai.ChatCompletionMessageParamUnion
	if system := buildSystemPrompt(g.systemPrompt, req.Persona); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(buildUserPrompt(req)))

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: messages,
	})
	if err != nil {
		return domain.GenerateResult{}, err
	}
	if len(completion.Choices) == 0 {
		return domain.GenerateResult{}, fmt.Errorf("openai returned no choices")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return domain.GenerateResult{}, fmt.Errorf("openai returned empty content")
	}
	return domain.GenerateResult{Content: text, Confidence: 1}, nil
}

func buildSystemPrompt(global, persona string) string {
	parts := make([]string, 0, 2)
	if global != "" {
		parts = append(parts, global)
	}
	if persona != "" {
		parts = append(parts, "You are writing as the following persona:\n"+persona)
	}
	return strings.Join(parts, "\n\n")
}

func buildUserPrompt(req domain.GenerateRequest) string {
	var b strings.Builder
	b.WriteString("Write a single social media reply.\n")
	if req.Context != "" {
		b.WriteString("It reacts to:\n")
		b.WriteString(req.Context)
		b.WriteString("\n")
	}
	if req.Constraints != "" {
		b.WriteString("Constraints: ")
		b.WriteString(req.Constraints)
		b.WriteString("\n")
	}
	b.WriteString("Return only the reply text, no quotes and no commentary.")
	return b.String()
}
