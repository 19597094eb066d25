package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider against Google's Gemini models via the
// official google.golang.org/genai SDK. Single-turn text completion only:
// no streaming, tool calling or thinking blocks, since the Provider
// contract has no use for them.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a GeminiProvider for model (e.g.
// "gemini-2.0-flash"). apiKey is required.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, system, user string, opts Options) (Response, error) {
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: user}}},
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = p.model
	}

	genResp, err := p.client.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return Response{}, &RetryableError{Err: fmt.Errorf("llm: gemini generate: %w", err)}
	}
	return parseGeminiResponse(genResp)
}

// parseGeminiResponse flattens the first candidate's text parts and usage
// metadata into a Response, skipping thought parts.
func parseGeminiResponse(genResp *genai.GenerateContentResponse) (Response, error) {
	if len(genResp.Candidates) == 0 {
		return Response{}, fmt.Errorf("llm: empty response from gemini")
	}
	candidate := genResp.Candidates[0]

	var text string
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				text += part.Text
			}
		}
	}

	resp := Response{Content: text}
	if genResp.UsageMetadata != nil {
		resp.Usage = Usage{
			InputTokens:  int(genResp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return resp, nil
}
