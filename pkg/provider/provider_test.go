// pkg/provider/provider_test.go

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
)

func TestScanSSE(t *testing.T) {
	t.Parallel()

	t.Run("yields each data payload and skips noise", func(t *testing.T) {
		t.Parallel()
		body := strings.Join([]string{
			": keep-alive",
			"event: message",
			"data: {\"a\":1}",
			"",
			"data: first",
			"data: second",
			"",
			"data: tail",
			"",
		}, "\n")

		var got []string
		err := scanSSE(context.Background(), strings.NewReader(body), func(data []byte) error {
			got = append(got, string(data))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"{\"a\":1}", "first\nsecond", "tail"}, got)
	})

	t.Run("stop sentinel ends the scan cleanly", func(t *testing.T) {
		t.Parallel()
		body := "data: one\n\ndata: [DONE]\n\ndata: never\n\n"
		var got []string
		err := scanSSE(context.Background(), strings.NewReader(body), func(data []byte) error {
			if string(data) == "[DONE]" {
				return errSSEStop
			}
			got = append(got, string(data))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"one"}, got)
	})

	t.Run("canceled context aborts", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := scanSSE(ctx, strings.NewReader("data: x\n\n"), func([]byte) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func collectChunks(t *testing.T, s *Stream) []ChatChunk {
	t.Helper()
	var chunks []ChatChunk
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-s.Chunks():
			if !ok {
				return chunks
			}
			chunks = append(chunks, c)
		case <-deadline:
			t.Fatal("stream did not finish")
		}
	}
}

func TestStreamCompletions(t *testing.T) {
	t.Parallel()

	sseBody := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		"",
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		"",
		`data: {"choices":[{"delta":{"tool_calls":[{"id":"call_1","function":{"name":"get_weather","arguments":"{\"city\":\"Perth\"}"}}]}}]}`,
		"",
		`data: {"choices":[],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`,
		"",
		"data: [DONE]",
		"",
	}, "\n")

	t.Run("delivers content, tool calls and usage", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte(sseBody))
		}))
		defer srv.Close()

		e := completionsEndpoint{url: srv.URL, headers: map[string]string{"Authorization": "Bearer sk-test"}}
		s, err := streamCompletions(context.Background(), srv.Client(), e, "gpt-4", []ChatMessage{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
		require.NoError(t, err)

		chunks := collectChunks(t, s)
		require.Len(t, chunks, 4)
		assert.Equal(t, ChatChunk{Type: ChunkContent, Content: "Hel"}, chunks[0])
		assert.Equal(t, ChatChunk{Type: ChunkContent, Content: "lo"}, chunks[1])
		require.Equal(t, ChunkToolCall, chunks[2].Type)
		assert.Equal(t, "get_weather", chunks[2].ToolCall.Name)
		require.Equal(t, ChunkDone, chunks[3].Type)
		require.NotNil(t, chunks[3].Usage)
		assert.Equal(t, 10, chunks[3].Usage.TotalTokens)
	})

	t.Run("non-2xx surfaces as an error chunk", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		s, err := streamCompletions(context.Background(), srv.Client(), completionsEndpoint{url: srv.URL}, "gpt-4", nil, ChatOptions{})
		require.NoError(t, err)

		chunks := collectChunks(t, s)
		require.Len(t, chunks, 1)
		assert.Equal(t, ChunkError, chunks[0].Type)
		assert.Contains(t, chunks[0].Err, "401")
	})

	t.Run("closing the stream stops the producer", func(t *testing.T) {
		t.Parallel()
		producerGone := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer close(producerGone)
			w.Header().Set("Content-Type", "text/event-stream")
			fl, ok := w.(http.Flusher)
			require.True(t, ok)
			for i := 0; ; i++ {
				if _, err := w.Write([]byte(`data: {"choices":[{"delta":{"content":"x"}}]}` + "\n\n")); err != nil {
					return
				}
				fl.Flush()
				select {
				case <-r.Context().Done():
					return
				case <-time.After(5 * time.Millisecond):
				}
			}
		}))
		defer srv.Close()

		s, err := streamCompletions(context.Background(), srv.Client(), completionsEndpoint{url: srv.URL}, "gpt-4", nil, ChatOptions{})
		require.NoError(t, err)

		// Read a couple of chunks, then walk away.
		<-s.Chunks()
		<-s.Chunks()
		s.Close()

		select {
		case <-producerGone:
		case <-time.After(5 * time.Second):
			t.Fatal("producer kept running after Close")
		}
	})
}

func TestAnthropicBuildRequest(t *testing.T) {
	t.Parallel()
	p := newAnthropic("key")
	temp := 0.2
	req := p.buildRequest([]ChatMessage{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "bye"},
	}, ChatOptions{Model: "claude-3-opus-20240229", Temperature: &temp})

	assert.Equal(t, "be brief", req.System)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, RoleUser, req.Messages[0].Role)
	assert.Equal(t, RoleAssistant, req.Messages[1].Role)
	assert.True(t, req.Stream)
	assert.Equal(t, 4096, req.MaxTokens)
}

func TestGoogleBuildRequest(t *testing.T) {
	t.Parallel()
	p := newGoogle("key")
	req := p.buildRequest([]ChatMessage{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}, ChatOptions{Model: "gemini-pro"})

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "be brief", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	assert.Nil(t, req.GenerationConfig)
}

func TestAzureEndpoint(t *testing.T) {
	t.Parallel()
	p := newAzureOpenAI(secretset.AzureCredential{
		APIKey:         "azkey",
		Endpoint:       "https://acme.openai.azure.com/",
		DeploymentName: "gpt4-prod",
	})
	e := p.endpoint()
	assert.Equal(t, "https://acme.openai.azure.com/openai/deployments/gpt4-prod/chat/completions", e.url)
	assert.Equal(t, "azkey", e.headers["api-key"])
	assert.Equal(t, azureAPIVersion, e.query.Get("api-version"))

	models := p.Models()
	require.Len(t, models, 1)
	assert.Equal(t, "gpt4-prod", models[0].ID)
}

func TestManagerConfigure(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.Configure(secretset.SecretSet{
		OpenAI: "sk-test",
		AWS: &secretset.AWSCredential{
			AccessKeyID:     "AKIA...",
			SecretAccessKey: "secret",
			Region:          "us-east-1",
		},
	})

	assert.True(t, m.Available(secretset.ProviderOpenAI))
	assert.True(t, m.Available(secretset.ProviderAWS))
	assert.False(t, m.Available(secretset.ProviderAnthropic))
	assert.False(t, m.Available(secretset.ProviderAzure))

	_, err := m.Get(secretset.ProviderGoogle)
	assert.ErrorIs(t, err, ErrNotConfigured)

	// Aggregated models keep canonical provider order: OpenAI before AWS.
	models := m.Models()
	require.NotEmpty(t, models)
	assert.Equal(t, secretset.ProviderOpenAI, models[0].Provider)
	assert.Equal(t, secretset.ProviderAWS, models[len(models)-1].Provider)

	assert.Nil(t, m.ProviderModels(secretset.ProviderAnthropic))
	assert.NotEmpty(t, m.ProviderModels(secretset.ProviderOpenAI))

	m.Reset()
	assert.False(t, m.Available(secretset.ProviderOpenAI))
	assert.Empty(t, m.Models())

	_, err = m.Chat(context.Background(), secretset.ProviderOpenAI, nil, ChatOptions{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
