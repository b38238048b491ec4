// pkg/provider/google.go

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	cerr "github.com/cockroachdb/errors"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
)

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// google streams responses from the Gemini API. The API key travels in a
// header rather than the query string so it cannot leak through error
// messages that quote the URL.
type google struct {
	apiKey string
	hc     *http.Client
}

func newGoogle(apiKey string) *google {
	return &google{apiKey: apiKey, hc: defaultHTTPClient}
}

func (p *google) ID() secretset.Provider { return secretset.ProviderGoogle }
func (p *google) Name() string           { return "Google AI" }

func (p *google) Models() []ModelInfo {
	return []ModelInfo{
		{
			ID:            "gemini-1.5-pro-latest",
			Name:          "Gemini 1.5 Pro",
			Provider:      secretset.ProviderGoogle,
			ContextLength: 1048576,
			Description:   "Most capable Gemini model with massive context window",
			Capabilities:  []string{"chat", "vision", "function-calling"},
		},
		{
			ID:            "gemini-1.5-flash-latest",
			Name:          "Gemini 1.5 Flash",
			Provider:      secretset.ProviderGoogle,
			ContextLength: 1048576,
			Description:   "Fast and efficient for high-frequency tasks",
			Capabilities:  []string{"chat", "vision", "function-calling"},
		},
		{
			ID:            "gemini-pro",
			Name:          "Gemini Pro",
			Provider:      secretset.ProviderGoogle,
			ContextLength: 32768,
			Description:   "Balanced performance for general tasks",
			Capabilities:  []string{"chat", "function-calling"},
		},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  *struct {
		Temperature     *float64 `json:"temperature,omitempty"`
		TopP            *float64 `json:"topP,omitempty"`
		MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
		StopSequences   []string `json:"stopSequences,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiChunk struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// buildRequest maps the shared chat shape onto Gemini contents. Gemini
// calls the assistant role "model" and takes the system prompt in its own
// field.
func (p *google) buildRequest(messages []ChatMessage, opts ChatOptions) geminiRequest {
	var req geminiRequest
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if req.SystemInstruction == nil {
				req.SystemInstruction = &geminiContent{}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, geminiPart{Text: m.Content})
		case RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if opts.Temperature != nil || opts.TopP != nil || opts.MaxTokens != nil || len(opts.Stop) > 0 {
		req.GenerationConfig = &struct {
			Temperature     *float64 `json:"temperature,omitempty"`
			TopP            *float64 `json:"topP,omitempty"`
			MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
			StopSequences   []string `json:"stopSequences,omitempty"`
		}{
			Temperature:     opts.Temperature,
			TopP:            opts.TopP,
			MaxOutputTokens: opts.MaxTokens,
			StopSequences:   opts.Stop,
		}
	}
	return req
}

func (p *google) Chat(parent context.Context, messages []ChatMessage, opts ChatOptions) (*Stream, error) {
	body, err := json.Marshal(p.buildRequest(messages, opts))
	if err != nil {
		return nil, cerr.Wrap(err, "encode request")
	}

	s, ctx := newStream(parent)
	go func() {
		endpoint := googleBaseURL + "/models/" + url.PathEscape(opts.Model) + ":streamGenerateContent?alt=sse"
		resp, err := p.post(ctx, endpoint, body)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		defer resp.Body.Close()
		if err := checkAPIStatus(resp, "Google AI"); err != nil {
			s.fail(ctx, err)
			return
		}

		var usage *Usage
		err = scanSSE(ctx, resp.Body, func(data []byte) error {
			var chunk geminiChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				return cerr.Wrap(err, "decode chunk")
			}
			if chunk.UsageMetadata != nil {
				usage = &Usage{
					PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
					CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
					TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
				}
			}
			for _, cand := range chunk.Candidates {
				for _, part := range cand.Content.Parts {
					if part.Text == "" {
						continue
					}
					if !s.emit(ctx, ChatChunk{Type: ChunkContent, Content: part.Text}) {
						return errSSEStop
					}
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

func (p *google) post(ctx context.Context, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, cerr.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)
	resp, err := p.hc.Do(req)
	if err != nil {
		return nil, cerr.Wrap(err, "chat request")
	}
	return resp, nil
}

func (p *google) ValidateCredential(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	one := 1
	req := p.buildRequest([]ChatMessage{{Role: RoleUser, Content: "Hi"}}, ChatOptions{MaxTokens: &one})
	body, err := json.Marshal(req)
	if err != nil {
		return cerr.Wrap(err, "encode request")
	}
	resp, err := p.post(ctx, googleBaseURL+"/models/gemini-pro:generateContent", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkAPIStatus(resp, "Google AI")
}
