package registry

import "travelagent/agent/state"

// DefaultPreconditions is the reference PreconditionChecker. Precondition
// tokens are opaque per spec, but the core ships this implementation so the
// rule-based planner and registered actions have a common vocabulary to
// target out of the box.
type DefaultPreconditions struct{}

// Check interprets the handful of capability tokens the rule-based planner's
// candidate actions declare.
func (DefaultPreconditions) Check(token string, st state.AgentState) bool {
	switch token {
	case "nodes_resolved":
		return len(st.Draft.Nodes) > 0
	case "facts_resolved":
		return len(st.Memory.SemanticFacts.POIs) > 0
	case "matrix_built":
		return st.Compute.TimeMatrixAPI != nil
	case "robust_matrix_built":
		return st.Compute.TimeMatrixRobust != nil
	case "optimization_done":
		return len(st.Compute.OptimizationResults) > 0
	case "timeline_present":
		return len(st.Result.Timeline) > 0
	case "not_terminal":
		return !st.Result.Status.Terminal()
	default:
		// Unknown tokens are treated as satisfied: the registry's job is to
		// reject only preconditions it was told to check, not to invent new
		// failure modes for tokens an action author defined for a system
		// outside this core's vocabulary.
		return true
	}
}
