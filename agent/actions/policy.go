package actions

import (
	"context"

	"travelagent/agent/critic"
	"travelagent/agent/registry"
	"travelagent/agent/state"
)

// validateFeasibility wraps critic.ValidateFeasibility behind the
// registry.ExecuteFunc contract, per spec §6's policy.validate_feasibility
// action. It runs the same six checks the Orchestrator's own post-action
// Critic pass runs; exposing it as a dispatchable action lets the rule
// ladder's final rung request an explicit pass/fail before the loop commits
// to READY, matching the worked example in spec §4.8 step 1's last rung.
func validateFeasibility(_ context.Context, _ map[string]any, st state.AgentState) (map[string]any, error) {
	result := critic.ValidateFeasibility(st, critic.DefaultPolicy())
	violations := make([]any, len(result.Violations))
	for i, v := range result.Violations {
		violations[i] = string(v)
	}
	out := map[string]any{"pass": result.Pass, "violations": violations}
	if result.MinSlackMin != nil {
		out["min_slack_min"] = *result.MinSlackMin
	}
	if result.TotalWaitMin != nil {
		out["total_wait_min"] = *result.TotalWaitMin
	}
	return out, nil
}

// registerPolicy registers the policy.* action family on reg.
func registerPolicy(reg *registry.Registry) error {
	return reg.Register(registry.Action{
		Name:        "policy.validate_feasibility",
		Description: "Run the feasibility checks against the current timeline.",
		Metadata: registry.Metadata{
			Kind: "validator", Cost: registry.CostLow, SideEffect: registry.SideEffectNone,
			Preconditions: []string{"timeline_present"},
			Idempotent:    true, Cacheable: false,
		},
		Execute: validateFeasibility,
	})
}
