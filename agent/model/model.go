// Package model defines the provider-agnostic request/response types the LLM
// Planner issues against a Claude/GPT/Bedrock-backed Client, plus the
// Client interface every provider adapter implements.
package model

import (
	"context"
	"errors"
)

type (
	// ConversationRole is the role of one Message in a conversation.
	ConversationRole string

	// Message is one turn in the conversation sent to the model.
	Message struct {
		Role ConversationRole
		Text string
	}

	// ModelClass selects a model family when Model is not specified,
	// letting callers ask for "the high-reasoning model" without naming a
	// concrete provider identifier.
	ModelClass string

	// TokenUsage reports provider-billed token counts for one request.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
	}

	// Request is a provider-agnostic planning call: a conversation plus the
	// JSON schema the caller expects the model's structured answer to
	// conform to.
	Request struct {
		// Messages is the conversation so far, oldest first.
		Messages []Message

		// System is an optional system prompt prepended ahead of Messages.
		System string

		// Model, when set, names a concrete provider model identifier and
		// takes precedence over ModelClass.
		Model string

		// ModelClass selects a model family when Model is empty.
		ModelClass ModelClass

		// ResponseSchema is the JSON Schema the model's answer must validate
		// against. The bundled adapters do not forward it to the provider;
		// the LLM Planner validates the answer against it client-side.
		ResponseSchema map[string]any

		MaxTokens   int
		Temperature float32
	}

	// Response is a completed planning call.
	Response struct {
		// Text is the raw text of the model's answer (expected to be JSON
		// conforming to Request.ResponseSchema).
		Text  string
		Usage TokenUsage
	}

	// Client is implemented by every provider adapter (Anthropic, OpenAI,
	// Bedrock). The LLM Planner depends only on this interface.
	Client interface {
		Complete(ctx context.Context, req *Request) (*Response, error)
	}
)

const (
	RoleSystem    ConversationRole = "system"
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"

	ModelClassHighReasoning ModelClass = "high-reasoning"
	ModelClassDefault       ModelClass = "default"
	ModelClassSmall         ModelClass = "small"
)

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting; the adapters wrap it so callers can match it with errors.Is.
// The LLM Planner's retry loop does not retry on it.
var ErrRateLimited = errors.New("model: rate limited")
