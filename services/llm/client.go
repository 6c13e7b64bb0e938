package llm

import (
	"context"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamCallback receives each incremental text chunk from a streaming
// completion. Returning an error stops the stream.
type StreamCallback func(chunk string) error

// ToolDefinition describes one callable tool advertised to the provider:
// its name, a human description, a JSON-schema argument shape, and whether
// the provider should validate arguments strictly against that shape.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
	Strict      bool
}

// ToolCall is one function invocation requested by the provider. Arguments
// is the raw JSON string as the provider returned it; callers own parsing.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResponse is the provider's single structured answer for a turn.
// Output is polymorphic (plain string, object with a "value" field, or
// other shapes); use ResolveOutputText to flatten it for display.
type ToolResponse struct {
	Output    any
	ToolCalls []ToolCall
}

// CompletionClient defines the interface for any chat-completion backend.
type CompletionClient interface {
	// ChatStream runs one completion and delivers incremental text chunks
	// through onChunk until the provider finishes or ctx is cancelled.
	ChatStream(ctx context.Context, system string, messages []datatypes.Message, params GenerationParams, onChunk StreamCallback) error

	// Respond runs one non-streaming completion with the given tools
	// advertised and returns the provider's structured answer.
	Respond(ctx context.Context, system string, messages []datatypes.Message, tools []ToolDefinition, params GenerationParams) (*ToolResponse, error)
}
