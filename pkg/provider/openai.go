// pkg/provider/openai.go

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	cerr "github.com/cockroachdb/errors"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
)

const openAIBaseURL = "https://api.openai.com/v1"

// defaultHTTPClient is shared by the HTTP adapters. Chat streams are
// governed by the request context, not a client timeout.
var defaultHTTPClient = &http.Client{}

// openAI streams chat completions from the OpenAI API.
type openAI struct {
	apiKey string
	hc     *http.Client
}

func newOpenAI(apiKey string) *openAI {
	return &openAI{apiKey: apiKey, hc: defaultHTTPClient}
}

func (p *openAI) ID() secretset.Provider { return secretset.ProviderOpenAI }
func (p *openAI) Name() string           { return "OpenAI" }

func (p *openAI) Models() []ModelInfo {
	return []ModelInfo{
		{
			ID:            "gpt-4-turbo-preview",
			Name:          "GPT-4 Turbo",
			Provider:      secretset.ProviderOpenAI,
			ContextLength: 128000,
			Description:   "Most capable GPT-4 model with vision capabilities",
			Capabilities:  []string{"chat", "vision", "function-calling"},
		},
		{
			ID:            "gpt-4",
			Name:          "GPT-4",
			Provider:      secretset.ProviderOpenAI,
			ContextLength: 8192,
			Description:   "More capable than GPT-3.5, better at complex tasks",
			Capabilities:  []string{"chat", "function-calling"},
		},
		{
			ID:            "gpt-3.5-turbo",
			Name:          "GPT-3.5 Turbo",
			Provider:      secretset.ProviderOpenAI,
			ContextLength: 16385,
			Description:   "Fast and cost-effective for simple tasks",
			Capabilities:  []string{"chat", "function-calling"},
		},
	}
}

func (p *openAI) endpoint() completionsEndpoint {
	return completionsEndpoint{
		url:          openAIBaseURL + "/chat/completions",
		headers:      map[string]string{"Authorization": "Bearer " + p.apiKey},
		includeUsage: true,
	}
}

func (p *openAI) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*Stream, error) {
	return streamCompletions(ctx, p.hc, p.endpoint(), opts.Model, messages, opts)
}

func (p *openAI) ValidateCredential(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAIBaseURL+"/models", nil)
	if err != nil {
		return cerr.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.hc.Do(req)
	if err != nil {
		return cerr.Wrap(err, "reach OpenAI")
	}
	defer resp.Body.Close()
	return checkAPIStatus(resp, "OpenAI")
}

// completionsEndpoint parameterizes the chat-completions wire protocol so
// Azure deployments can reuse it with their own URL and auth headers.
type completionsEndpoint struct {
	url          string
	headers      map[string]string
	query        url.Values
	includeUsage bool
}

type completionsRequest struct {
	Model         string               `json:"model"`
	Messages      []completionsMessage `json:"messages"`
	Temperature   *float64             `json:"temperature,omitempty"`
	TopP          *float64             `json:"top_p,omitempty"`
	MaxTokens     *int                 `json:"max_tokens,omitempty"`
	Stop          []string             `json:"stop,omitempty"`
	Tools         []completionsTool    `json:"tools,omitempty"`
	Stream        bool                 `json:"stream"`
	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options,omitempty"`
}

type completionsMessage struct {
	Role       string                `json:"role"`
	Content    string                `json:"content"`
	ToolCalls  []completionsToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                `json:"tool_call_id,omitempty"`
}

type completionsToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type completionsTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	} `json:"function"`
}

type completionsChunk struct {
	Choices []struct {
		Delta struct {
			Content   string                `json:"content"`
			ToolCalls []completionsToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func buildCompletionsRequest(model string, messages []ChatMessage, opts ChatOptions, includeUsage bool) completionsRequest {
	req := completionsRequest{
		Model:       model,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.Stop,
		Stream:      true,
	}
	if includeUsage {
		req.StreamOptions = &struct {
			IncludeUsage bool `json:"include_usage"`
		}{IncludeUsage: true}
	}
	for _, m := range messages {
		cm := completionsMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			ctc := completionsToolCall{ID: tc.ID, Type: "function"}
			ctc.Function.Name = tc.Name
			ctc.Function.Arguments = tc.Arguments
			cm.ToolCalls = append(cm.ToolCalls, ctc)
		}
		req.Messages = append(req.Messages, cm)
	}
	for _, t := range opts.Tools {
		ct := completionsTool{Type: "function"}
		ct.Function.Name = t.Name
		ct.Function.Description = t.Description
		ct.Function.Parameters = t.Parameters
		req.Tools = append(req.Tools, ct)
	}
	return req
}

// streamCompletions runs one streaming chat-completions call, fanning SSE
// deltas into a Stream.
func streamCompletions(parent context.Context, hc *http.Client, e completionsEndpoint, model string, messages []ChatMessage, opts ChatOptions) (*Stream, error) {
	body, err := json.Marshal(buildCompletionsRequest(model, messages, opts, e.includeUsage))
	if err != nil {
		return nil, cerr.Wrap(err, "encode request")
	}

	s, ctx := newStream(parent)
	go func() {
		reqURL := e.url
		if len(e.query) > 0 {
			reqURL += "?" + e.query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
		if err != nil {
			s.fail(ctx, cerr.Wrap(err, "build request"))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		for k, v := range e.headers {
			req.Header.Set(k, v)
		}

		resp, err := hc.Do(req)
		if err != nil {
			s.fail(ctx, cerr.Wrap(err, "chat request"))
			return
		}
		defer resp.Body.Close()
		if err := checkAPIStatus(resp, "chat API"); err != nil {
			s.fail(ctx, err)
			return
		}

		var usage *Usage
		err = scanSSE(ctx, resp.Body, func(data []byte) error {
			if bytes.Equal(data, []byte("[DONE]")) {
				return errSSEStop
			}
			var chunk completionsChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				return cerr.Wrap(err, "decode chunk")
			}
			if chunk.Usage != nil {
				usage = &Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			if len(chunk.Choices) == 0 {
				return nil
			}
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				if !s.emit(ctx, ChatChunk{Type: ChunkContent, Content: delta.Content}) {
					return errSSEStop
				}
			}
			for _, tc := range delta.ToolCalls {
				out := &ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
				if !s.emit(ctx, ChatChunk{Type: ChunkToolCall, ToolCall: out}) {
					return errSSEStop
				}
			}
			return nil
		})
		if err != nil {
			s.fail(ctx, err)
			return
		}
		s.finish(ctx, usage)
	}()
	return s, nil
}

// checkAPIStatus turns a non-2xx response into an error carrying a short
// body excerpt. Credential values never appear in the message.
func checkAPIStatus(resp *http.Response, api string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return cerr.Newf("%s returned %s: %s", api, resp.Status, bytes.TrimSpace(excerpt))
}
