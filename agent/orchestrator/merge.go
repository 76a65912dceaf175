package orchestrator

import (
	"strings"
	"time"

	"travelagent/agent/state"
)

// mergeResult is the per-candidate outcome the Act phase hands to the merge
// step: either an output map ready to fold into state, or an error that
// becomes an observation without mutating anything for that candidate.
type mergeResult struct {
	name   string
	output map[string]any
	err    error
}

// mergeAction folds one action's result into st by routing on its name
// prefix, per spec §4.8 step 2's updateStateFromAction. It never panics on
// malformed output: missing/mistyped fields are simply skipped, leaving the
// corresponding state unchanged for that field.
func mergeAction(st state.AgentState, name string, output map[string]any) state.AgentState {
	switch {
	case strings.HasPrefix(name, "places.resolve_entities"):
		return mergeResolveEntities(st, output)
	case strings.HasPrefix(name, "places.get_poi_facts"):
		return mergeFacts(st, output)
	case strings.HasPrefix(name, "transport.build_time_matrix"):
		return mergeTimeMatrix(st, output)
	case strings.HasPrefix(name, "itinerary.optimize_"), strings.HasPrefix(name, "itinerary.repair_"):
		return mergeItinerary(st, output)
	case name == "policy.validate_feasibility":
		return mergeValidate(st, output)
	case strings.HasPrefix(name, "webbrowse."):
		return mergeWebbrowse(st, output)
	default:
		return st
	}
}

// mergeResolveEntities writes draft.nodes and, on a recognizable error
// string, short-circuits the loop into NEED_MORE_INFO per spec §4.8's Act
// step clause on the resolver's error field.
func mergeResolveEntities(st state.AgentState, output map[string]any) state.AgentState {
	if errStr, ok := asString(output["error"]); ok {
		lower := strings.ToLower(errStr)
		if strings.Contains(lower, "invalid query") || strings.Contains(lower, "unknown") {
			if !st.Result.Status.Terminal() {
				st.Result.Status = state.StatusNeedMoreInfo
				st.Result.Explanations = append(st.Result.Explanations, errStr)
			}
			return st
		}
	}
	nodes, ok := asMapSlice(output["nodes"])
	if !ok {
		return st
	}
	st.Draft.Nodes = make([]state.Node, 0, len(nodes))
	for _, m := range nodes {
		st.Draft.Nodes = append(st.Draft.Nodes, parseNode(m))
	}
	return st
}

func parseNode(m map[string]any) state.Node {
	n := state.Node{}
	n.ID, _ = asString(m["id"])
	n.Name, _ = asString(m["name"])
	n.Kind, _ = asString(m["kind"])
	n.Lat, _ = asFloat(m["lat"])
	n.Lng, _ = asFloat(m["lng"])
	if ot, ok := m["open_time"].(map[string]any); ok {
		start, _ := asString(ot["start"])
		end, _ := asString(ot["end"])
		n.OpenTime = &state.TimeWindow{Start: start, End: end}
	}
	return n
}

// mergeFacts writes memory.semantic_facts.pois, which spec invariant 5 only
// permits once draft.nodes is non-empty; the rule ladder never dispatches
// places.get_poi_facts until that precondition holds, so this merge does
// not re-check it.
func mergeFacts(st state.AgentState, output map[string]any) state.AgentState {
	facts, ok := output["facts"].(map[string]any)
	if !ok {
		return st
	}
	if st.Memory.SemanticFacts.POIs == nil {
		st.Memory.SemanticFacts.POIs = make(map[string]state.PlaceFacts, len(facts))
	}
	for id, v := range facts {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		pf := state.PlaceFacts{Extra: map[string]any{}}
		pf.Hours, _ = asString(m["hours"])
		pf.Price, _ = asString(m["price"])
		for k, vv := range m {
			if k == "hours" || k == "price" {
				continue
			}
			pf.Extra[k] = vv
		}
		st.Memory.SemanticFacts.POIs[id] = pf
	}
	return st
}

func mergeTimeMatrix(st state.AgentState, output map[string]any) state.AgentState {
	if api, ok := output["time_matrix_api"]; ok {
		if tm, ok := parseTimeMatrix(api); ok {
			st.Compute.TimeMatrixAPI = tm
		}
	}
	if robust, ok := output["time_matrix_robust"]; ok {
		if tm, ok := parseTimeMatrix(robust); ok {
			st.Compute.TimeMatrixRobust = tm
		}
	}
	return st
}

func parseTimeMatrix(v any) (*state.TimeMatrix, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	ids, _ := asStringSlice(m["node_ids"])
	rows, _ := m["minutes"].([]any)
	minutes := make([][]float64, 0, len(rows))
	for _, r := range rows {
		row, _ := r.([]any)
		parsed := make([]float64, 0, len(row))
		for _, c := range row {
			f, _ := asFloat(c)
			parsed = append(parsed, f)
		}
		minutes = append(minutes, parsed)
	}
	return &state.TimeMatrix{NodeIDs: ids, Minutes: minutes}, true
}

// mergeItinerary replaces compute.optimization_results and result.timeline
// (and result.dropped_items when present). A repair's output is treated as a
// full replacement rather than a merge, matching the dependency analyzer's
// declared side-effect paths for both action-name prefixes.
func mergeItinerary(st state.AgentState, output map[string]any) state.AgentState {
	if results, ok := asMapSlice(output["results"]); ok {
		st.Compute.OptimizationResults = make([]state.OptimizationResult, 0, len(results))
		for _, m := range results {
			day, _ := asInt(m["day"])
			score, _ := asFloat(m["score"])
			st.Compute.OptimizationResults = append(st.Compute.OptimizationResults, state.OptimizationResult{
				Day: day, Score: score, Produced: time.Now().UTC(),
			})
		}
	}
	if timeline, ok := asMapSlice(output["timeline"]); ok {
		st.Result.Timeline = make([]state.TimelineEvent, 0, len(timeline))
		for _, m := range timeline {
			st.Result.Timeline = append(st.Result.Timeline, parseTimelineEvent(m))
		}
	}
	if dropped, ok := asStringSlice(output["dropped_items"]); ok {
		st.Result.DroppedItems = dropped
	}
	return st
}

func parseTimelineEvent(m map[string]any) state.TimelineEvent {
	ev := state.TimelineEvent{}
	kind, _ := asString(m["kind"])
	ev.Kind = state.TimelineEventKind(kind)
	ev.NodeID, _ = asString(m["node_id"])
	ev.Day, _ = asInt(m["day"])
	ev.Start, _ = asString(m["start"])
	ev.End, _ = asString(m["end"])
	ev.WaitMin, _ = asInt(m["wait_min"])
	return ev
}

// mergeValidate sets result.status to READY when the action reports the
// schedule feasible; a failing result never mutates status, leaving the
// Repair step in control of what happens next.
func mergeValidate(st state.AgentState, output map[string]any) state.AgentState {
	if pass, ok := output["pass"].(bool); ok && pass && !st.Result.Status.Terminal() {
		st.Result.Status = state.StatusReady
	}
	return st
}

func mergeWebbrowse(st state.AgentState, output map[string]any) state.AgentState {
	snippet, ok := asString(output["extracted_text"])
	if !ok {
		snippet, ok = asString(output["content"])
	}
	if !ok {
		snippet, _ = asString(output["title"])
	}
	if snippet != "" {
		st.Memory.EpisodicSnippets = append(st.Memory.EpisodicSnippets, snippet)
	}
	st.Observability.BrowserSteps++
	return st
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

func asMapSlice(v any) ([]map[string]any, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, true
}

func asStringSlice(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// hardNodeDropped reports whether any of the draft's hard-pinned nodes ended
// up in result.dropped_items, the condition spec §4.8's exit classification
// maps to a terminal FAILED status.
func hardNodeDropped(st state.AgentState) bool {
	if len(st.Draft.HardNodes) == 0 || len(st.Result.DroppedItems) == 0 {
		return false
	}
	dropped := make(map[string]bool, len(st.Result.DroppedItems))
	for _, id := range st.Result.DroppedItems {
		dropped[id] = true
	}
	for _, n := range st.Draft.HardNodes {
		if dropped[n.ID] {
			return true
		}
	}
	return false
}

// reasonCodeFor derives the decision_log reason_code from the action name
// alone; preState is accepted but not consulted.
func reasonCodeFor(name string, preState state.AgentState) string {
	switch {
	case strings.HasPrefix(name, "places.resolve_entities"):
		return "MISSING_NODES"
	case strings.HasPrefix(name, "places.get_poi_facts"):
		return "FETCHING_FACTS"
	case strings.HasPrefix(name, "transport.build_time_matrix"):
		return "MISSING_TIME_MATRIX"
	case strings.HasPrefix(name, "itinerary.optimize_"):
		return "OPTIMIZING"
	case strings.HasPrefix(name, "itinerary.repair_"):
		return "REPAIRING"
	case name == "policy.validate_feasibility":
		return "VALIDATION_PASSED"
	case strings.HasPrefix(name, "webbrowse."):
		return "WEB_BROWSE_REQUIRED"
	default:
		return "UNKNOWN"
	}
}
