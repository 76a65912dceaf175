package orchestrator

import (
	"context"

	"travelagent/agent/critic"
	"travelagent/agent/state"
)

// repair applies spec §4.8 step 5's deterministic violation→fix-up mapping.
// It never consults the LLM: every branch is a fixed rule. It returns the
// possibly-mutated state and whether it actually dispatched a repair action
// (false means the violation has no defined fix-up and the loop should fall
// through to its normal guard-driven termination).
func (o *Orchestrator) repair(ctx context.Context, st state.AgentState, cr critic.Result) (state.AgentState, bool) {
	for _, v := range cr.Violations {
		switch v {
		case critic.ViolationRobustTimeMissing:
			if len(st.Draft.Nodes) > 0 {
				return o.runRepairAction(ctx, st, "transport.build_time_matrix", map[string]any{
					"nodes":  nodeIDs(st),
					"robust": true,
				})
			}
			if !st.Result.Status.Terminal() {
				st.Result.Status = state.StatusNeedMoreInfo
				st.Result.Explanations = append(st.Result.Explanations, "cannot compute robust transit times without resolved nodes")
			}
			return st, true
		case critic.ViolationTimeWindowConflict:
			return o.runRepairAction(ctx, st, "itinerary.repair_cross_day", map[string]any{
				"violations": cr.Violations,
			})
		case critic.ViolationLunchMissing:
			// No timeline yet: deferred, nothing to fix up this iteration. A
			// timeline already present but lacking a lunch anchor is recorded
			// for the next optimize/repair pass to address; the core does not
			// itself synthesize a lunch event.
			if len(st.Result.Timeline) > 0 {
				st.Result.Explanations = append(st.Result.Explanations, "lunch anchor missing; awaiting schedule repair")
			}
		}
	}
	return st, false
}

// runRepairAction executes name directly (bypassing the planner/dependency
// analyzer, since a repair is a single deterministic fix-up, not a planned
// candidate set) and merges its result the same way the Act phase would.
func (o *Orchestrator) runRepairAction(ctx context.Context, st state.AgentState, name string, input map[string]any) (state.AgentState, bool) {
	action, ok := o.registry.Get(name)
	if !ok {
		o.logger.Warn(ctx, "orchestrator: repair action not registered", "action", name)
		return st, false
	}
	if !o.registry.CheckPreconditions(ctx, name, st, o.preds) {
		o.logger.Debug(ctx, "orchestrator: repair preconditions unmet", "action", name)
		return st, false
	}
	out, err := action.Execute(ctx, input, st)
	if err != nil {
		o.logger.Warn(ctx, "orchestrator: repair action failed", "action", name, "error", err.Error())
		return st, true
	}
	return mergeAction(st, name, out), true
}

func nodeIDs(st state.AgentState) []string {
	ids := make([]string, 0, len(st.Draft.Nodes))
	for _, n := range st.Draft.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
