package planner

import (
	"context"

	"travelagent/agent/telemetry"
)

// blockChecker reports whether the loop-guard forbids the LLM Planner from
// selecting actionName, regardless of what it proposes: spec §4.5
// requires Composite to "validate... not currently blocked by Plan's
// loop-guard rules" before trusting an LLM suggestion.
type blockChecker func(actionName string) bool

// Composite tries an optional LLM Planner first and falls back to the
// rule-based planner on an error (such as a timeout or malformed output), an
// empty result, or a blocked action. It does not check proposed action names
// against Input.Available; the orchestrator skips unknown names when it
// resolves candidates. Per the Design Notes' "strictly optional"
// requirement, Rule alone must be a complete planner.
type Composite struct {
	LLM     Planner // optional; nil disables the LLM strategy entirely
	Rule    Planner
	Blocked blockChecker
	Logger  telemetry.Logger
}

// NewComposite builds a Composite planner. llm may be nil. blocked may be
// nil, in which case no action is ever considered blocked by the LLM path
// (the Rule planner still enforces its own loop guards independently when it
// runs).
func NewComposite(llm Planner, rule Planner, blocked blockChecker, logger telemetry.Logger) *Composite {
	if rule == nil {
		rule = NewRule()
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Composite{LLM: llm, Rule: rule, Blocked: blocked, Logger: logger}
}

// Plan consults the LLM Planner first when configured; if it returns a
// non-blocked action, Composite takes it as-is. Any error, an empty result,
// or a blocked action name falls through to the rule-based planner.
func (c *Composite) Plan(ctx context.Context, in Input) (Result, error) {
	if c.LLM != nil {
		result, err := c.LLM.Plan(ctx, in)
		if err == nil && llmResultUsable(result, c.Blocked) {
			return result, nil
		}
		if err != nil {
			c.Logger.Warn(ctx, "planner: llm planner failed, falling back to rule planner", "error", err.Error())
		}
	}
	return c.Rule.Plan(ctx, in)
}

func llmResultUsable(r Result, blocked blockChecker) bool {
	if r.Done {
		return true
	}
	if len(r.ActionCalls) == 0 {
		return false
	}
	if blocked == nil {
		return true
	}
	for _, ac := range r.ActionCalls {
		if blocked(ac.Name) {
			return false
		}
	}
	return true
}
