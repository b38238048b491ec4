// pkg/provider/provider.go

package provider

import (
	"context"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
)

// Message roles accepted by every adapter. Adapters that have no native
// notion of a role (Gemini, Bedrock) fold system prompts into their own
// request shape.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one turn of a conversation in the neutral wire shape
// shared by all adapters.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-requested function invocation. Arguments is the raw
// JSON string exactly as the provider streamed it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a function the model may call.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatOptions tunes a single chat request. Nil pointer fields mean
// "provider default".
type ChatOptions struct {
	Model       string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stop        []string
	Tools       []Tool
}

// Usage is the token accounting reported with the final chunk of a stream.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ChunkType discriminates the payload of a ChatChunk.
type ChunkType string

const (
	ChunkContent  ChunkType = "content"
	ChunkToolCall ChunkType = "tool_call"
	ChunkError    ChunkType = "error"
	ChunkDone     ChunkType = "done"
)

// ChatChunk is one streamed increment of a chat response. A stream ends
// with exactly one ChunkDone or ChunkError chunk.
type ChatChunk struct {
	Type     ChunkType `json:"type"`
	Content  string    `json:"content,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	Err      string    `json:"error,omitempty"`
	Usage    *Usage    `json:"usage,omitempty"`
}

// ModelInfo describes one model an adapter can serve.
type ModelInfo struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Provider      secretset.Provider `json:"provider"`
	ContextLength int                `json:"contextLength"`
	Description   string             `json:"description,omitempty"`
	Capabilities  []string           `json:"capabilities,omitempty"`
}

// Provider is one configured upstream AI service. Implementations hold the
// decrypted credential in memory only and must never log it.
type Provider interface {
	ID() secretset.Provider
	Name() string
	Models() []ModelInfo

	// Chat starts a streaming completion. The returned stream is live
	// immediately; cancel the context or call Stream.Close to abandon it.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*Stream, error)

	// ValidateCredential performs a minimal upstream call to prove the
	// stored credential still works.
	ValidateCredential(ctx context.Context) error
}
