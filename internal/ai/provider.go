// Package ai generates note titles and content with a cloud LLM and turns the
// provider's streamed response into a sequence of typed events.
package ai

import (
	"context"
	"iter"
)

// Roles used in prompt turns.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is one piece of a turn or response: text or an inline binary payload.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// Turn is one message in a conversation.
type Turn struct {
	Role  string
	Parts []Part
}

// Prompt is a provider-neutral request.
type Prompt struct {
	System string
	Turns  []Turn
	// Search enables the provider's web search grounding tool.
	Search bool
	// Images asks for image output alongside text.
	Images bool
	// ContentField asks for a JSON object with a single required string
	// field "content" instead of free-form text.
	ContentField bool
}

// Chunk is one response increment. A non-streamed call returns a single
// chunk holding the whole answer.
type Chunk struct {
	Text   string
	Images []Part
}

// Provider is the boundary to the LLM vendor.
type Provider interface {
	Generate(ctx context.Context, model string, p Prompt) (Chunk, error)
	Stream(ctx context.Context, model string, p Prompt) iter.Seq2[Chunk, error]
}

// ProviderFactory builds a provider for an API key.
type ProviderFactory func(ctx context.Context, apiKey string) (Provider, error)
