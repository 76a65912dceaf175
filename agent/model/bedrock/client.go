// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock Converse API.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"travelagent/agent/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client the
// adapter needs, so tests can substitute a mock for *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock client adapter.
type Options struct {
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float32
}

// Client implements model.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float32
}

// New initializes a Bedrock-backed model client.
func New(runtime *bedrockruntime.Client, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	return &Client{
		runtime:      runtime,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// Complete issues a Converse request and translates the response into a
// model.Response.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	modelID := c.resolveModelID(req)

	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := brtypes.ConversationRoleUser
		if m.Role == model.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Text}},
		})
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  &modelID,
		Messages: messages,
	}
	if req.System != "" {
		in.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.System}}
	}
	cfg := &brtypes.InferenceConfiguration{}
	if mt := req.MaxTokens; mt > 0 {
		v := int32(mt)
		cfg.MaxTokens = &v
	} else if c.maxTok > 0 {
		v := int32(c.maxTok)
		cfg.MaxTokens = &v
	}
	if t := req.Temperature; t > 0 {
		v := t
		cfg.Temperature = &v
	} else if c.temp > 0 {
		v := c.temp
		cfg.Temperature = &v
	}
	in.InferenceConfig = cfg

	out, err := c.runtime.Converse(ctx, in)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateResponse(out), nil
}

func (c *Client) resolveModelID(req *model.Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.ModelClass {
	case model.ModelClassHighReasoning:
		if c.highModel != "" {
			return c.highModel
		}
	case model.ModelClassSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func translateResponse(out *bedrockruntime.ConverseOutput) *model.Response {
	var sb strings.Builder
	if msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msgOut.Value.Content {
			if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
				sb.WriteString(text.Value)
			}
		}
	}
	resp := &model.Response{Text: sb.String()}
	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			resp.Usage.InputTokens = int(*out.Usage.InputTokens)
		}
		if out.Usage.OutputTokens != nil {
			resp.Usage.OutputTokens = int(*out.Usage.OutputTokens)
		}
	}
	return resp
}

func isRateLimited(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 429
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ThrottlingException"
	}
	return false
}
