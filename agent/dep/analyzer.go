// Package dep implements the Dependency Analyzer: given candidate actions and
// current state, decide which subsets may execute in parallel without
// read/write conflicts.
package dep

import (
	"strings"

	"travelagent/agent/registry"
	"travelagent/agent/state"
)

// Candidate is one action proposed by Plan, together with the input it would
// be called with.
type Candidate struct {
	Action registry.Action
	Input  map[string]any
}

// pathSpec is the inferred precondition/side-effect footprint for one
// candidate, expressed as dotted state paths.
type pathSpec struct {
	preconditions []string
	sideEffects   []string
}

// namePrefixEffects maps known action-name prefixes to the state paths they
// write, per spec §4.4's worked examples. Unrecognized names get no inferred
// side effect path, so they conflict with another candidate only when that
// candidate's side effects overlap their declared preconditions.
var namePrefixEffects = []struct {
	prefix  string
	effects []string
}{
	{"places.resolve_entities", []string{"draft.nodes"}},
	{"places.get_poi_facts", []string{"memory.semantic_facts.pois"}},
	{"transport.build_time_matrix", []string{"compute.time_matrix_api", "compute.time_matrix_robust"}},
	{"itinerary.optimize_", []string{"compute.optimization_results", "result.timeline"}},
	{"itinerary.repair_", []string{"compute.optimization_results", "result.timeline"}},
	{"policy.validate_feasibility", []string{"result.status"}},
	{"webbrowse.", []string{"memory.episodic_snippets", "observability.browser_steps"}},
}

func inferSideEffects(name string) []string {
	for _, entry := range namePrefixEffects {
		if strings.HasPrefix(name, entry.prefix) {
			return entry.effects
		}
	}
	return nil
}

func (c Candidate) spec() pathSpec {
	return pathSpec{
		preconditions: append([]string(nil), c.Action.Metadata.Preconditions...),
		sideEffects:   inferSideEffects(c.Action.Name),
	}
}

// overlaps reports whether a is a dotted-path prefix of b or vice versa
// (e.g. "draft" overlaps "draft.nodes").
func overlaps(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a+".", b+".") || strings.HasPrefix(b+".", a+".")
}

func anyOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if overlaps(x, y) {
				return true
			}
		}
	}
	return false
}

// compatible reports whether x and y may run in the same parallel group:
// no side effect of either overlaps a precondition of the other, and no
// side effect of either overlaps a side effect of the other.
func compatible(x, y pathSpec) bool {
	if anyOverlap(x.sideEffects, y.preconditions) {
		return false
	}
	if anyOverlap(y.sideEffects, x.preconditions) {
		return false
	}
	if anyOverlap(x.sideEffects, y.sideEffects) {
		return false
	}
	return true
}

// FindParallelizableActions groups candidates greedily in input order and
// returns the first group (the set of candidates Plan should dispatch this
// iteration). _ is accepted for API symmetry with implementations that
// inspect state (e.g. to resolve conditional preconditions); the reference
// implementation only needs static per-candidate path specs.
func FindParallelizableActions(candidates []Candidate, _ state.AgentState) [][]Candidate {
	if len(candidates) == 0 {
		return nil
	}
	specs := make([]pathSpec, len(candidates))
	for i, c := range candidates {
		specs[i] = c.spec()
	}

	var groups [][]Candidate
	used := make([]bool, len(candidates))
	for i := range candidates {
		if used[i] {
			continue
		}
		group := []Candidate{candidates[i]}
		groupSpecs := []pathSpec{specs[i]}
		used[i] = true
		for j := i + 1; j < len(candidates); j++ {
			if used[j] {
				continue
			}
			ok := true
			for _, gs := range groupSpecs {
				if !compatible(gs, specs[j]) {
					ok = false
					break
				}
			}
			if ok {
				group = append(group, candidates[j])
				groupSpecs = append(groupSpecs, specs[j])
				used[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// FirstParallelGroup returns the first parallelizable group for candidates,
// or a single-candidate group if candidates has exactly one entry, or nil if
// candidates is empty. This is the entry point the orchestrator's Plan step
// uses: "pass them to the Dependency Analyzer; use the first parallel group."
func FirstParallelGroup(candidates []Candidate, st state.AgentState) []Candidate {
	groups := FindParallelizableActions(candidates, st)
	if len(groups) == 0 {
		return nil
	}
	return groups[0]
}
