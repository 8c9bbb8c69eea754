package ai

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// Gemini implements Provider on the Gemini API.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini API client for apiKey.
func NewGemini(ctx context.Context, apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ai: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Generate performs a single non-streamed completion.
func (g *Gemini) Generate(ctx context.Context, model string, p Prompt) (Chunk, error) {
	contents, cfg := buildRequest(p)
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return Chunk{}, fmt.Errorf("ai: generate: %w", err)
	}
	return toChunk(resp), nil
}

// Stream performs a streamed completion. Stopping the iteration early
// cancels the underlying request.
func (g *Gemini) Stream(ctx context.Context, model string, p Prompt) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		contents, cfg := buildRequest(p)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				yield(Chunk{}, fmt.Errorf("ai: stream: %w", err))
				return
			}
			if !yield(toChunk(resp), nil) {
				return
			}
		}
	}
}

func buildRequest(p Prompt) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(p.Turns))
	for _, t := range p.Turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == RoleModel {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(t.Parts))
		for _, part := range t.Parts {
			if len(part.Data) > 0 {
				parts = append(parts, genai.NewPartFromBytes(part.Data, part.MIMEType))
				continue
			}
			parts = append(parts, genai.NewPartFromText(part.Text))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if p.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: p.System}}}
	}
	if p.Search {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if p.Images {
		cfg.ResponseModalities = []string{"TEXT", "IMAGE"}
	}
	if p.ContentField {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"content": {Type: genai.TypeString},
			},
			Required: []string{"content"},
		}
	}
	return contents, cfg
}

func toChunk(resp *genai.GenerateContentResponse) Chunk {
	var c Chunk
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return c
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			c.Images = append(c.Images, Part{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data})
			continue
		}
		b.WriteString(part.Text)
	}
	c.Text = b.String()
	return c
}
