// Package planner implements the LLM Planner: it turns the current
// AgentState and the set of available actions into either a batch of action
// calls to dispatch next or a final response, by prompting a model.Client and
// validating the JSON it returns against a fixed plan schema.
package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"travelagent/agent/model"
	"travelagent/agent/registry"
	"travelagent/agent/state"
	"travelagent/agent/telemetry"
)

type (
	// ActionCall is one action the planner wants the orchestrator to
	// dispatch, with the input it should be called with.
	ActionCall struct {
		Name  string
		Input map[string]any
	}

	// Result communicates the planner's decision for one Plan call: either
	// a batch of action calls, or a final response terminating the run.
	// Exactly one of ActionCalls or FinalMessage is populated.
	Result struct {
		ActionCalls  []ActionCall
		FinalMessage string
		Done         bool
	}

	// Input is what the planner needs to decide the next step.
	Input struct {
		// State is the current AgentState (read-only; the planner never
		// mutates it).
		State state.AgentState
		// Available lists the actions the planner may request.
		Available []registry.Action
		// Observations carries the results of the previous iteration's
		// dispatched actions, if any, so the planner can integrate them.
		Observations []Observation
	}

	// Observation is the outcome of one previously dispatched action.
	Observation struct {
		Name   string
		Output map[string]any
		Err    string
	}

	// Planner decides the next step of the agent loop.
	Planner interface {
		Plan(ctx context.Context, input Input) (Result, error)
	}
)

// planResponse is the JSON shape the model is asked to emit; it mirrors
// Result but in wire form.
type planResponse struct {
	ActionCalls []struct {
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	} `json:"action_calls"`
	FinalMessage string `json:"final_message"`
	Done         bool   `json:"done"`
}

// planResponseSchemaDoc is the JSON Schema planResponse must validate against.
// Compiled once in New and reused across calls.
var planResponseSchemaDoc = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"action_calls": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":  map[string]any{"type": "string"},
					"input": map[string]any{"type": "object"},
				},
				"required": []any{"name"},
			},
		},
		"final_message": map[string]any{"type": "string"},
		"done":          map[string]any{"type": "boolean"},
	},
}

// LLMPlanner implements Planner on top of a model.Client.
type LLMPlanner struct {
	client     model.Client
	schema     *jsonschema.Schema
	maxRetries int
	logger     telemetry.Logger
}

// New constructs an LLMPlanner. maxRetries bounds how many times a
// schema-invalid model response is retried with a corrective follow-up
// message before Plan gives up and returns an error.
func New(client model.Client, maxRetries int, logger telemetry.Logger) (*LLMPlanner, error) {
	if client == nil {
		return nil, fmt.Errorf("planner: model client is required")
	}
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	compiler := jsonschema.NewCompiler()
	const schemaURL = "plan-response.json"
	if err := compiler.AddResource(schemaURL, planResponseSchemaDoc); err != nil {
		return nil, fmt.Errorf("planner: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("planner: compile schema: %w", err)
	}
	return &LLMPlanner{client: client, schema: schema, maxRetries: maxRetries, logger: logger}, nil
}

// Plan builds a prompt from input, calls the model, and validates its JSON
// answer against the plan schema, retrying with a corrective instruction on
// malformed output up to maxRetries times.
func (p *LLMPlanner) Plan(ctx context.Context, input Input) (Result, error) {
	messages := []model.Message{{Role: model.RoleUser, Text: buildPrompt(input)}}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		resp, err := p.client.Complete(ctx, &model.Request{
			Messages:       messages,
			System:         systemPrompt,
			ModelClass:     model.ModelClassHighReasoning,
			ResponseSchema: planResponseSchemaDoc,
			MaxTokens:      2048,
		})
		if err != nil {
			return Result{}, fmt.Errorf("planner: model call: %w", err)
		}

		var parsed any
		if err := json.Unmarshal([]byte(resp.Text), &parsed); err != nil {
			lastErr = fmt.Errorf("planner: response is not valid JSON: %w", err)
			messages = append(messages, model.Message{Role: model.RoleAssistant, Text: resp.Text},
				model.Message{Role: model.RoleUser, Text: "Your previous response was not valid JSON. Reply with only the JSON object, no prose."})
			p.logger.Warn(ctx, "planner: retrying after invalid JSON", "attempt", attempt)
			continue
		}
		if err := p.schema.Validate(parsed); err != nil {
			lastErr = fmt.Errorf("planner: response failed schema validation: %w", err)
			messages = append(messages, model.Message{Role: model.RoleAssistant, Text: resp.Text},
				model.Message{Role: model.RoleUser, Text: fmt.Sprintf("Your previous response did not match the required schema: %s. Reply again with a conforming JSON object.", err)})
			p.logger.Warn(ctx, "planner: retrying after schema violation", "attempt", attempt)
			continue
		}

		var wire planResponse
		if err := json.Unmarshal([]byte(resp.Text), &wire); err != nil {
			lastErr = fmt.Errorf("planner: decode validated response: %w", err)
			continue
		}
		result := Result{FinalMessage: wire.FinalMessage, Done: wire.Done}
		for _, ac := range wire.ActionCalls {
			result.ActionCalls = append(result.ActionCalls, ActionCall{Name: ac.Name, Input: ac.Input})
		}
		return result, nil
	}
	return Result{}, fmt.Errorf("planner: exhausted retries: %w", lastErr)
}

const systemPrompt = `You are the planning core of a travel itinerary agent. ` +
	`Given the current state and the list of available actions, respond with a ` +
	`single JSON object: {"action_calls": [{"name": ..., "input": {...}}], ` +
	`"final_message": "...", "done": bool}. Set "done" true and populate ` +
	`"final_message" only when no further actions are needed.`

func buildPrompt(input Input) string {
	names := make([]string, 0, len(input.Available))
	for _, a := range input.Available {
		names = append(names, a.Name)
	}
	stateJSON, _ := json.Marshal(input.State)
	obsJSON, _ := json.Marshal(input.Observations)
	return fmt.Sprintf("Available actions: %v\n\nCurrent state:\n%s\n\nPrevious observations:\n%s", names, stateJSON, obsJSON)
}
