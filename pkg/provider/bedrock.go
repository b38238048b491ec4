// pkg/provider/bedrock.go

package provider

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	cerr "github.com/cockroachdb/errors"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
)

// bedrock streams responses from AWS Bedrock through the Converse API,
// which normalizes the per-model payload formats the runtime otherwise
// requires.
type bedrock struct {
	cred secretset.AWSCredential
}

func newBedrock(cred secretset.AWSCredential) *bedrock {
	return &bedrock{cred: cred}
}

func (p *bedrock) ID() secretset.Provider { return secretset.ProviderAWS }
func (p *bedrock) Name() string           { return "AWS Bedrock" }

func (p *bedrock) Models() []ModelInfo {
	return []ModelInfo{
		{
			ID:            "anthropic.claude-3-opus-20240229-v1:0",
			Name:          "Claude 3 Opus (Bedrock)",
			Provider:      secretset.ProviderAWS,
			ContextLength: 200000,
			Description:   "Claude 3 Opus via AWS Bedrock",
			Capabilities:  []string{"chat"},
		},
		{
			ID:            "anthropic.claude-3-sonnet-20240229-v1:0",
			Name:          "Claude 3 Sonnet (Bedrock)",
			Provider:      secretset.ProviderAWS,
			ContextLength: 200000,
			Description:   "Claude 3 Sonnet via AWS Bedrock",
			Capabilities:  []string{"chat"},
		},
		{
			ID:            "amazon.titan-text-express-v1",
			Name:          "Titan Text Express",
			Provider:      secretset.ProviderAWS,
			ContextLength: 8192,
			Description:   "Amazon's Titan model for text generation",
			Capabilities:  []string{"chat"},
		},
		{
			ID:            "meta.llama3-70b-instruct-v1:0",
			Name:          "Llama 3 70B",
			Provider:      secretset.ProviderAWS,
			ContextLength: 8192,
			Description:   "Meta's Llama 3 70B model",
			Capabilities:  []string{"chat"},
		},
	}
}

func (p *bedrock) awsConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(p.cred.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.cred.AccessKeyID, p.cred.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return aws.Config{}, cerr.Wrap(err, "load AWS config")
	}
	return cfg, nil
}

// buildInput maps the shared chat shape onto Converse messages. System
// turns go to the dedicated system blocks; tool turns fold into user
// turns since Converse tracks tool results separately.
func (p *bedrock) buildInput(messages []ChatMessage, opts ChatOptions) *bedrockruntime.ConverseStreamInput {
	in := &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(opts.Model),
	}
	for _, m := range messages {
		if m.Role == RoleSystem {
			in.System = append(in.System, &brtypes.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := brtypes.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		in.Messages = append(in.Messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	if opts.Temperature != nil || opts.TopP != nil || opts.MaxTokens != nil || len(opts.Stop) > 0 {
		ic := &brtypes.InferenceConfiguration{StopSequences: opts.Stop}
		if opts.Temperature != nil {
			ic.Temperature = aws.Float32(float32(*opts.Temperature))
		}
		if opts.TopP != nil {
			ic.TopP = aws.Float32(float32(*opts.TopP))
		}
		if opts.MaxTokens != nil {
			ic.MaxTokens = aws.Int32(int32(*opts.MaxTokens))
		}
		in.InferenceConfig = ic
	}
	return in
}

func (p *bedrock) Chat(parent context.Context, messages []ChatMessage, opts ChatOptions) (*Stream, error) {
	s, ctx := newStream(parent)
	go func() {
		cfg, err := p.awsConfig(ctx)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		client := bedrockruntime.NewFromConfig(cfg)

		out, err := client.ConverseStream(ctx, p.buildInput(messages, opts))
		if err != nil {
			s.fail(ctx, cerr.Wrap(err, "start Bedrock stream"))
			return
		}
		events := out.GetStream()
		defer events.Close()

		var usage *Usage
		var toolID, toolName string
		for ev := range events.Events() {
			switch e := ev.(type) {
			case *brtypes.ConverseStreamOutputMemberContentBlockStart:
				if start, ok := e.Value.Start.(*brtypes.ContentBlockStartMemberToolUse); ok {
					toolID = aws.ToString(start.Value.ToolUseId)
					toolName = aws.ToString(start.Value.Name)
				}
			case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
				switch d := e.Value.Delta.(type) {
				case *brtypes.ContentBlockDeltaMemberText:
					if !s.emit(ctx, ChatChunk{Type: ChunkContent, Content: d.Value}) {
						return
					}
				case *brtypes.ContentBlockDeltaMemberToolUse:
					tc := &ToolCall{ID: toolID, Name: toolName, Arguments: aws.ToString(d.Value.Input)}
					if !s.emit(ctx, ChatChunk{Type: ChunkToolCall, ToolCall: tc}) {
						return
					}
				}
			case *brtypes.ConverseStreamOutputMemberMetadata:
				if e.Value.Usage != nil {
					usage = &Usage{
						PromptTokens:     int(aws.ToInt32(e.Value.Usage.InputTokens)),
						CompletionTokens: int(aws.ToInt32(e.Value.Usage.OutputTokens)),
						TotalTokens:      int(aws.ToInt32(e.Value.Usage.TotalTokens)),
					}
				}
			}
		}
		if err := events.Err(); err != nil {
			s.fail(ctx, cerr.Wrap(err, "Bedrock stream"))
			return
		}
		s.finish(ctx, usage)
	}()
	return s, nil
}

// ValidateCredential checks the key pair against STS rather than invoking
// a model, so validation costs nothing and needs no Bedrock model access.
func (p *bedrock) ValidateCredential(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cfg, err := p.awsConfig(ctx)
	if err != nil {
		return err
	}
	if _, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return cerr.Wrap(err, "verify AWS credentials")
	}
	return nil
}
