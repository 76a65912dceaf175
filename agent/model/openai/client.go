// Package openai provides a model.Client implementation backed by the OpenAI
// Chat Completions API, using github.com/openai/openai-go. Unlike the
// Anthropic and Bedrock adapters, no sibling example in the retrieved corpus
// exercises this SDK's v1 (param-wrapper-free) API, so this adapter is
// written directly against the published openai-go v1 API rather than
// adapted from an existing call site.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"travelagent/agent/model"
)

// ChatService mirrors the subset of the OpenAI SDK client the adapter needs,
// so tests can substitute a mock for the real openai.Client.
type ChatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float64
}

// Client implements model.Client on top of OpenAI Chat Completions.
type Client struct {
	chat         ChatService
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float64
}

// New builds an OpenAI-backed model client.
func New(chat ChatService, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat service is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model identifier is required")
	}
	return &Client{
		chat:         chat,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	oc := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&oc.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete issues a Chat Completions request and translates the response
// into a model.Response.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := c.resolveModelID(req)

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == model.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(m.Text))
	}

	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	if mt := req.MaxTokens; mt > 0 {
		params.MaxCompletionTokens = openai.Int(int64(mt))
	} else if c.maxTok > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTok))
	}
	if t := req.Temperature; t > 0 {
		params.Temperature = openai.Float(float64(t))
	} else if c.temp > 0 {
		params.Temperature = openai.Float(c.temp)
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai chat.completions.new: %w", err)
	}
	return translateResponse(resp), nil
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

func translateResponse(resp *openai.ChatCompletion) *model.Response {
	out := &model.Response{
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
	}
	return out
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
