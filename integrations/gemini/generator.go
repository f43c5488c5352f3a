package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzielCF/az-amp/campaign/domain"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// Generator produces persona-conditioned content through the Gemini API.
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
		return domain.GenerateResult{}, fmt.Errorf("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return domain.GenerateResult{}, err
	}

	system := buildSystemPrompt(g.systemPrompt, req.Persona)
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, ""),
		}
	}

	prompt := buildUserPrompt(req)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return domain.GenerateResult{}, err
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return domain.GenerateResult{}, fmt.Errorf("gemini returned no candidates")
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
