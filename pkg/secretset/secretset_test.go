// pkg/secretset/secretset_test.go

package secretset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	set := &SecretSet{
		OpenAI:    "sk-abc",
		Anthropic: "sk-ant-1",
		AWS: &AWSCredential{
			AccessKeyID:     "AKIAEXAMPLE",
			SecretAccessKey: "shh",
			Region:          "us-east-1",
		},
		Azure: &AzureCredential{
			APIKey:         "az-key",
			Endpoint:       "https://example.openai.azure.com",
			DeploymentName: "gpt-4o",
		},
	}

	data, err := set.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, set, got)
}

func TestMarshalWireFormat(t *testing.T) {
	// The plaintext wrapper and field names are shared with the web client.
	set := &SecretSet{OpenAI: "sk-abc"}
	data, err := set.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"apiKeys":{"openai":"sk-abc"}}`, string(data))

	// Structured credentials keep their camelCase field names.
	set = &SecretSet{AWS: &AWSCredential{AccessKeyID: "id", SecretAccessKey: "sec", Region: "us-west-2"}}
	data, err = set.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"apiKeys":{"aws":{"accessKeyId":"id","secretAccessKey":"sec","region":"us-west-2"}}}`,
		string(data))
}

func TestSet(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		value    any
		wantErr  bool
	}{
		{name: "openai token", provider: ProviderOpenAI, value: "sk-abc"},
		{name: "anthropic token", provider: ProviderAnthropic, value: "sk-ant-1"},
		{name: "google token", provider: ProviderGoogle, value: "g-key"},
		{
			name:     "aws struct",
			provider: ProviderAWS,
			value:    AWSCredential{AccessKeyID: "id", SecretAccessKey: "sec", Region: "eu-central-1"},
		},
		{
			name:     "azure pointer",
			provider: ProviderAzure,
			value:    &AzureCredential{APIKey: "k", Endpoint: "https://x.openai.azure.com", DeploymentName: "d"},
		},
		{
			name:     "aws raw json",
			provider: ProviderAWS,
			value:    json.RawMessage(`{"accessKeyId":"id","secretAccessKey":"sec","region":"us-east-1"}`),
		},
		{name: "unknown provider", provider: Provider("bedrock"), value: "x", wantErr: true},
		{name: "empty token", provider: ProviderOpenAI, value: "", wantErr: true},
		{name: "token provider given struct", provider: ProviderGoogle, value: AWSCredential{}, wantErr: true},
		{
			name:     "aws missing region",
			provider: ProviderAWS,
			value:    AWSCredential{AccessKeyID: "id", SecretAccessKey: "sec"},
			wantErr:  true,
		},
		{
			name:     "azure bad endpoint",
			provider: ProviderAzure,
			value:    AzureCredential{APIKey: "k", Endpoint: "not a url", DeploymentName: "d"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var set SecretSet
			err := set.Set(tt.provider, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, set.Configured(), tt.provider)
		})
	}
}

func TestRemove(t *testing.T) {
	set := &SecretSet{OpenAI: "sk-abc", AWS: &AWSCredential{AccessKeyID: "id", SecretAccessKey: "s", Region: "r"}}

	require.NoError(t, set.Remove(ProviderOpenAI))
	require.NoError(t, set.Remove(ProviderAWS))
	// Removing an absent credential is fine.
	require.NoError(t, set.Remove(ProviderAzure))

	assert.True(t, set.IsEmpty())
	assert.Error(t, set.Remove(Provider("nope")))
}

func TestConfigured(t *testing.T) {
	var empty SecretSet
	assert.True(t, empty.IsEmpty())
	assert.Empty(t, empty.Configured())

	set := SecretSet{OpenAI: "sk", Google: "g"}
	assert.Equal(t, []Provider{ProviderOpenAI, ProviderGoogle}, set.Configured())
	assert.False(t, set.IsEmpty())
}

func TestHas(t *testing.T) {
	set := SecretSet{
		OpenAI: "sk",
		AWS:    &AWSCredential{AccessKeyID: "id", SecretAccessKey: "s", Region: "r"},
	}

	for _, p := range Providers() {
		assert.Equal(t, p == ProviderOpenAI || p == ProviderAWS, set.Has(p), string(p))
	}
	assert.False(t, set.Has(Provider("nope")))

	// Has agrees with Configured for every provider.
	for _, p := range set.Configured() {
		assert.True(t, set.Has(p), string(p))
	}
}
