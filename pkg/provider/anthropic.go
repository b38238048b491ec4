// pkg/provider/anthropic.go

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	cerr "github.com/cockroachdb/errors"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"

	// Cheapest model, used only for credential checks.
	anthropicProbeModel = "claude-3-haiku-20240307"
)

// anthropic streams responses from the Anthropic Messages API.
type anthropic struct {
	apiKey string
	hc     *http.Client
}

func newAnthropic(apiKey string) *anthropic {
	return &anthropic{apiKey: apiKey, hc: defaultHTTPClient}
}

func (p *anthropic) ID() secretset.Provider { return secretset.ProviderAnthropic }
func (p *anthropic) Name() string           { return "Anthropic" }

func (p *anthropic) Models() []ModelInfo {
	return []ModelInfo{
		{
			ID:            "claude-3-opus-20240229",
			Name:          "Claude 3 Opus",
			Provider:      secretset.ProviderAnthropic,
			ContextLength: 200000,
			Description:   "Most capable Claude model, best for complex tasks",
			Capabilities:  []string{"chat", "vision", "function-calling"},
		},
		{
			ID:            "claude-3-sonnet-20240229",
			Name:          "Claude 3 Sonnet",
			Provider:      secretset.ProviderAnthropic,
			ContextLength: 200000,
			Description:   "Balanced performance and speed",
			Capabilities:  []string{"chat", "vision", "function-calling"},
		},
		{
			ID:            "claude-3-haiku-20240307",
			Name:          "Claude 3 Haiku",
			Provider:      secretset.ProviderAnthropic,
			ContextLength: 200000,
			Description:   "Fastest Claude model for simple tasks",
			Capabilities:  []string{"chat", "vision"},
		},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	Stop        []string           `json:"stop_sequences,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

// anthropicEvent is the union of the stream event payloads we care about.
type anthropicEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// buildRequest folds system turns into the dedicated system field; all
// remaining turns map onto the strict user/assistant alternation the
// Messages API expects.
func (p *anthropic) buildRequest(messages []ChatMessage, opts ChatOptions) anthropicRequest {
	req := anthropicRequest{
		Model:       opts.Model,
		MaxTokens:   4096,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stop:        opts.Stop,
		Stream:      true,
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	for _, m := range messages {
		if m.Role == RoleSystem {
			if req.System != "" {
				req.System += "\n"
			}
			req.System += m.Content
			continue
		}
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: role, Content: m.Content})
	}
	return req
}

func (p *anthropic) Chat(parent context.Context, messages []ChatMessage, opts ChatOptions) (*Stream, error) {
	body, err := json.Marshal(p.buildRequest(messages, opts))
	if err != nil {
		return nil, cerr.Wrap(err, "encode request")
	}

	s, ctx := newStream(parent)
	go func() {
		resp, err := p.post(ctx, body)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		defer resp.Body.Close()
		if err := checkAPIStatus(resp, "Anthropic"); err != nil {
			s.fail(ctx, err)
			return
		}

		usage := &Usage{}
		var toolID, toolName string
		err = scanSSE(ctx, resp.Body, func(data []byte) error {
			var ev anthropicEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return cerr.Wrap(err, "decode event")
			}
			switch ev.Type {
			case "message_start":
				if ev.Message != nil {
					usage.PromptTokens = ev.Message.Usage.InputTokens
				}
			case "content_block_start":
				if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
					toolID, toolName = ev.ContentBlock.ID, ev.ContentBlock.Name
				}
			case "content_block_delta":
				if ev.Delta == nil {
					return nil
				}
				switch ev.Delta.Type {
				case "text_delta":
					if !s.emit(ctx, ChatChunk{Type: ChunkContent, Content: ev.Delta.Text}) {
						return errSSEStop
					}
				case "input_json_delta":
					tc := &ToolCall{ID: toolID, Name: toolName, Arguments: ev.Delta.PartialJSON}
					if !s.emit(ctx, ChatChunk{Type: ChunkToolCall, ToolCall: tc}) {
						return errSSEStop
					}
				}
			case "message_delta":
				if ev.Usage != nil {
					usage.CompletionTokens = ev.Usage.OutputTokens
				}
			case "message_stop":
				return errSSEStop
			case "error":
				if ev.Error != nil {
					return cerr.Newf("Anthropic stream error: %s", ev.Error.Message)
				}
			}
			return nil
		})
		if err != nil {
			s.fail(ctx, err)
			return
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		s.finish(ctx, usage)
	}()
	return s, nil
}

func (p *anthropic) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicBaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, cerr.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	resp, err := p.hc.Do(req)
	if err != nil {
		return nil, cerr.Wrap(err, "chat request")
	}
	return resp, nil
}

func (p *anthropic) ValidateCredential(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	body, err := json.Marshal(anthropicRequest{
		Model:     anthropicProbeModel,
		Messages:  []anthropicMessage{{Role: RoleUser, Content: "Hi"}},
		MaxTokens: 1,
	})
	if err != nil {
		return cerr.Wrap(err, "encode request")
	}
	resp, err := p.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkAPIStatus(resp, "Anthropic")
}
