// pkg/provider/azure.go

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
)

const azureAPIVersion = "2024-02-15-preview"

// azureOpenAI streams chat completions from an Azure OpenAI deployment.
// The wire protocol is the standard chat-completions one; only the URL
// shape and auth header differ, and the deployment name stands in for the
// model.
type azureOpenAI struct {
	cred secretset.AzureCredential
	hc   *http.Client
}

func newAzureOpenAI(cred secretset.AzureCredential) *azureOpenAI {
	return &azureOpenAI{cred: cred, hc: defaultHTTPClient}
}

func (p *azureOpenAI) ID() secretset.Provider { return secretset.ProviderAzure }
func (p *azureOpenAI) Name() string           { return "Azure OpenAI" }

func (p *azureOpenAI) Models() []ModelInfo {
	// Azure exposes whatever model the deployment was created with.
	return []ModelInfo{
		{
			ID:            p.cred.DeploymentName,
			Name:          "Azure Deployment: " + p.cred.DeploymentName,
			Provider:      secretset.ProviderAzure,
			ContextLength: 128000,
			Description:   "Your Azure OpenAI deployment",
			Capabilities:  []string{"chat", "function-calling"},
		},
	}
}

func (p *azureOpenAI) endpoint() completionsEndpoint {
	base := strings.TrimSuffix(p.cred.Endpoint, "/")
	return completionsEndpoint{
		url:     base + "/openai/deployments/" + url.PathEscape(p.cred.DeploymentName) + "/chat/completions",
		headers: map[string]string{"api-key": p.cred.APIKey},
		query:   url.Values{"api-version": []string{azureAPIVersion}},
	}
}

func (p *azureOpenAI) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*Stream, error) {
	// The deployment name replaces the model id on Azure.
	return streamCompletions(ctx, p.hc, p.endpoint(), p.cred.DeploymentName, messages, opts)
}

func (p *azureOpenAI) ValidateCredential(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	one := 1
	reqBody := buildCompletionsRequest(p.cred.DeploymentName, []ChatMessage{{Role: RoleUser, Content: "Hi"}}, ChatOptions{MaxTokens: &one}, false)
	reqBody.Stream = false
	body, err := json.Marshal(reqBody)
	if err != nil {
		return cerr.Wrap(err, "encode request")
	}

	e := p.endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"?"+e.query.Encode(), bytes.NewReader(body))
	if err != nil {
		return cerr.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		return cerr.Wrap(err, "reach Azure OpenAI")
	}
	defer resp.Body.Close()
	return checkAPIStatus(resp, "Azure OpenAI")
}
