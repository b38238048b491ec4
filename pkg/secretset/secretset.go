// pkg/secretset/secretset.go

// Package secretset models the per-user set of AI provider credentials that
// the vault seals. The JSON field names are part of the envelope plaintext
// format shared with the web client and must stay stable.
package secretset

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Provider identifies one of the supported AI providers.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderAWS       Provider = "aws"
	ProviderAzure     Provider = "azure"
)

// Providers lists every supported provider in canonical order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderAWS, ProviderAzure}
}

// Valid reports whether p names a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderAWS, ProviderAzure:
		return true
	}
	return false
}

// AWSCredential configures AWS Bedrock access.
type AWSCredential struct {
	AccessKeyID     string `json:"accessKeyId" validate:"required"`
	SecretAccessKey string `json:"secretAccessKey" validate:"required"`
	Region          string `json:"region" validate:"required"`
}

// AzureCredential configures an Azure OpenAI deployment.
type AzureCredential struct {
	APIKey         string `json:"apiKey" validate:"required"`
	Endpoint       string `json:"endpoint" validate:"required,url"`
	DeploymentName string `json:"deploymentName" validate:"required"`
}

// SecretSet holds one credential per provider. A nil/empty field means the
// provider is not configured.
type SecretSet struct {
	OpenAI    string           `json:"openai,omitempty"`
	Anthropic string           `json:"anthropic,omitempty"`
	Google    string           `json:"google,omitempty"`
	AWS       *AWSCredential   `json:"aws,omitempty"`
	Azure     *AzureCredential `json:"azure,omitempty"`
}

// vaultData is the plaintext wrapper the web client has always sealed; kept
// so envelopes written by either side open on the other.
type vaultData struct {
	APIKeys SecretSet `json:"apiKeys"`
}

var validate = validator.New()

// Marshal renders the set to its canonical plaintext bytes.
func (s *SecretSet) Marshal() ([]byte, error) {
	data, err := json.Marshal(vaultData{APIKeys: *s})
	if err != nil {
		return nil, fmt.Errorf("marshal secret set: %w", err)
	}
	return data, nil
}

// Unmarshal parses canonical plaintext bytes back into a SecretSet.
func Unmarshal(data []byte) (*SecretSet, error) {
	var vd vaultData
	if err := json.Unmarshal(data, &vd); err != nil {
		return nil, fmt.Errorf("unmarshal secret set: %w", err)
	}
	return &vd.APIKeys, nil
}

// Set stores a credential for a provider. Token providers take a string;
// aws and azure take their structured credential (by value or pointer),
// validated before acceptance.
func (s *SecretSet) Set(p Provider, value any) error {
	if !p.Valid() {
		return fmt.Errorf("unknown provider %q", p)
	}

	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		token, ok := value.(string)
		if !ok || token == "" {
			return fmt.Errorf("provider %s requires a non-empty token", p)
		}
		switch p {
		case ProviderOpenAI:
			s.OpenAI = token
		case ProviderAnthropic:
			s.Anthropic = token
		case ProviderGoogle:
			s.Google = token
		}

	case ProviderAWS:
		cred, err := coerce[AWSCredential](value)
		if err != nil {
			return fmt.Errorf("provider aws: %w", err)
		}
		if err := validate.Struct(cred); err != nil {
			return fmt.Errorf("provider aws: invalid credential: %w", err)
		}
		s.AWS = cred

	case ProviderAzure:
		cred, err := coerce[AzureCredential](value)
		if err != nil {
			return fmt.Errorf("provider azure: %w", err)
		}
		if err := validate.Struct(cred); err != nil {
			return fmt.Errorf("provider azure: invalid credential: %w", err)
		}
		s.Azure = cred
	}

	return nil
}

// Remove clears the credential for a provider. Removing an absent credential
// is not an error.
func (s *SecretSet) Remove(p Provider) error {
	if !p.Valid() {
		return fmt.Errorf("unknown provider %q", p)
	}
	switch p {
	case ProviderOpenAI:
		s.OpenAI = ""
	case ProviderAnthropic:
		s.Anthropic = ""
	case ProviderGoogle:
		s.Google = ""
	case ProviderAWS:
		s.AWS = nil
	case ProviderAzure:
		s.Azure = nil
	}
	return nil
}

// Configured returns the providers that currently hold a credential.
func (s *SecretSet) Configured() []Provider {
	var out []Provider
	if s.OpenAI != "" {
		out = append(out, ProviderOpenAI)
	}
	if s.Anthropic != "" {
		out = append(out, ProviderAnthropic)
	}
	if s.Google != "" {
		out = append(out, ProviderGoogle)
	}
	if s.AWS != nil {
		out = append(out, ProviderAWS)
	}
	if s.Azure != nil {
		out = append(out, ProviderAzure)
	}
	return out
}

// Has reports whether a credential is configured for p.
func (s *SecretSet) Has(p Provider) bool {
	switch p {
	case ProviderOpenAI:
		return s.OpenAI != ""
	case ProviderAnthropic:
		return s.Anthropic != ""
	case ProviderGoogle:
		return s.Google != ""
	case ProviderAWS:
		return s.AWS != nil
	case ProviderAzure:
		return s.Azure != nil
	}
	return false
}

// IsEmpty reports whether no provider is configured.
func (s *SecretSet) IsEmpty() bool {
	return len(s.Configured()) == 0
}

// coerce accepts T, *T or a json.RawMessage encoding of T.
func coerce[T any](value any) (*T, error) {
	switch v := value.(type) {
	case T:
		return &v, nil
	case *T:
		if v == nil {
			return nil, fmt.Errorf("credential must not be nil")
		}
		return v, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, fmt.Errorf("parse credential: %w", err)
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("unsupported credential type %T", value)
	}
}
