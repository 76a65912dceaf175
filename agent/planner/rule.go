package planner

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"travelagent/agent/registry"
	"travelagent/agent/state"
)

// maxResolveAttempts bounds how many times places.resolve_entities may be
// attempted before the loop guard forces a terminal NEED_MORE_INFO, per
// spec §4.8's loop-guard clause and Testable Property 6.
const maxResolveAttempts = 2

// sameActionStreak is the number of consecutive identical choices that
// trips the anti-thrash loop guard.
const sameActionStreak = 3

var urlPattern = regexp.MustCompile(`https?://\S+`)

// RulePlanner implements the deterministic ladder from spec §4.8 step 1.
// It is complete on its own: the LLM Planner is a strictly optional
// strategy layered in front of it by Composite, never a replacement.
type RulePlanner struct{}

// NewRule constructs a RulePlanner. It holds no state; every Plan call is a
// pure function of its Input.
func NewRule() *RulePlanner { return &RulePlanner{} }

// Plan applies the ordered rule ladder. It never returns an error: every
// branch either proposes a candidate or terminates the run via Done/
// FinalMessage, matching the "logs and returns an unchanged state" posture
// the rest of the core uses for recoverable conditions.
func (RulePlanner) Plan(_ context.Context, in Input) (Result, error) {
	st := in.State

	if blocked, result := checkTerminalGuards(st); blocked {
		return result, nil
	}

	if u, ok := firstURL(st.UserInput); ok {
		if a, ok := find(in.Available, "webbrowse.browse"); ok {
			return Result{ActionCalls: []ActionCall{{
				Name: a.Name,
				Input: map[string]any{
					"url":               u,
					"extract_text":      true,
					"extract_links":     false,
					"take_screenshot":   false,
				},
			}}}, nil
		}
	}

	streak, ok := lastActionStreak(st, sameActionStreak)
	var avoid string
	if ok {
		avoid = streak
	}

	candidate, reasonCode, ok := ladderCandidate(st, in.Available)
	if !ok {
		return Result{Done: true, FinalMessage: finalMessageFor(st)}, nil
	}

	if avoid != "" && candidate.Name == avoid {
		if alt, altReason, ok := nextLadderCandidate(st, in.Available, avoid); ok {
			candidate, reasonCode = alt, altReason
		} else {
			return Result{Done: true, FinalMessage: finalMessageFor(st)}, nil
		}
	}

	_ = reasonCode // reason codes are attached by the orchestrator's decision log, not the planner's Result
	return Result{ActionCalls: []ActionCall{candidate}}, nil
}

// checkTerminalGuards implements the two unconditional stop conditions that
// precede the rule ladder: the resolve_entities loop guard and the empty/
// unknown-input guard. Both terminate with NEED_MORE_INFO without entering
// action execution, per spec §4.8 and scenario S5.
func checkTerminalGuards(st state.AgentState) (bool, Result) {
	if resolveAttempts(st) >= maxResolveAttempts && len(st.Draft.Nodes) == 0 {
		return true, Result{Done: true, FinalMessage: "NEED_MORE_INFO:resolve_entities_exhausted"}
	}
	trimmed := strings.TrimSpace(st.UserInput)
	if (trimmed == "" || strings.EqualFold(trimmed, "unknown")) && len(st.Draft.Nodes) == 0 {
		return true, Result{Done: true, FinalMessage: "NEED_MORE_INFO:empty_input"}
	}
	return false, Result{}
}

// resolveAttempts counts how many times places.resolve_entities appears in
// the observation trail so far, regardless of outcome.
func resolveAttempts(st state.AgentState) int {
	n := 0
	for _, o := range st.React.Observations {
		if o.Action == "places.resolve_entities" {
			n++
		}
	}
	return n
}

// lastActionStreak reports the action name chosen in each of the last n
// decision_log entries if they are all identical, so Plan can steer away
// from an action the loop keeps re-selecting without progress.
func lastActionStreak(st state.AgentState, n int) (string, bool) {
	log := st.React.DecisionLog
	if len(log) < n {
		return "", false
	}
	last := log[len(log)-n:]
	name := last[0].ChosenAction
	for _, e := range last[1:] {
		if e.ChosenAction != name {
			return "", false
		}
	}
	return name, true
}

func firstURL(input string) (string, bool) {
	m := urlPattern.FindString(input)
	if m == "" {
		return "", false
	}
	if _, err := url.Parse(m); err != nil {
		return "", false
	}
	return m, true
}

func find(actions []registry.Action, name string) (registry.Action, bool) {
	for _, a := range actions {
		if a.Name == name {
			return a, true
		}
	}
	return registry.Action{}, false
}

// ladderCandidate walks the ordered rule ladder from spec §4.8 step 1 and
// returns the first applicable action plus the reason code the orchestrator
// should log for it, or ok=false when no rung applies (the run is done).
func ladderCandidate(st state.AgentState, available []registry.Action) (ActionCall, string, bool) {
	nodes := len(st.Draft.Nodes)
	facts := len(st.Memory.SemanticFacts.POIs)
	hasMatrix := st.Compute.TimeMatrixAPI != nil || st.Compute.TimeMatrixRobust != nil
	hasRobustMatrix := st.Compute.TimeMatrixRobust != nil
	hasOptimization := len(st.Compute.OptimizationResults) > 0

	switch {
	case nodes == 0:
		if a, ok := find(available, "places.resolve_entities"); ok {
			return ActionCall{Name: a.Name, Input: map[string]any{"query": st.UserInput, "limit": 20}}, "MISSING_NODES", true
		}
	case nodes > 0 && facts == 0:
		if a, ok := find(available, "places.get_poi_facts"); ok {
			return ActionCall{Name: a.Name, Input: map[string]any{"poi_ids": nodeIDs(st)}}, "FETCHING_FACTS", true
		}
	case nodes > 0 && facts > 0 && !hasMatrix:
		if a, ok := find(available, "transport.build_time_matrix"); ok {
			return ActionCall{Name: a.Name, Input: map[string]any{"nodes": nodeIDs(st)}}, "MISSING_TIME_MATRIX", true
		}
	case nodes > 0 && hasRobustMatrix && !hasOptimization:
		if a, ok := find(available, "itinerary.optimize_day_vrptw"); ok {
			return ActionCall{Name: a.Name, Input: map[string]any{
				"nodes":        nodeIDs(st),
				"time_matrix":  st.Compute.TimeMatrixRobust,
				"trip":         st.Trip,
			}}, "OPTIMIZING", true
		}
	case hasOptimization && len(st.Result.Timeline) > 0 && st.Result.Status == state.StatusDraft:
		if a, ok := find(available, "policy.validate_feasibility"); ok {
			return ActionCall{Name: a.Name, Input: map[string]any{
				"timeline": st.Result.Timeline,
				"policy":   st.Trip,
			}}, "VALIDATION_PASSED", true
		}
	}
	return ActionCall{}, "", false
}

// nextLadderCandidate re-derives a candidate with avoid removed from
// available, used by the anti-thrash guard. ladderCandidate still picks the
// rung from state alone, so when avoid is that rung's action no later rung is
// tried and the result is ok=false.
func nextLadderCandidate(st state.AgentState, available []registry.Action, avoid string) (ActionCall, string, bool) {
	var filtered []registry.Action
	for _, a := range available {
		if a.Name != avoid {
			filtered = append(filtered, a)
		}
	}
	return ladderCandidate(st, filtered)
}

func nodeIDs(st state.AgentState) []string {
	ids := make([]string, 0, len(st.Draft.Nodes))
	for _, n := range st.Draft.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// finalMessageFor synthesizes the planner's "I'm done, no further action"
// signal once the ladder offers nothing further and no guard tripped; the
// orchestrator still re-runs the Critic before treating this as terminal.
func finalMessageFor(st state.AgentState) string {
	if len(st.Result.Timeline) > 0 {
		return "itinerary draft ready for feasibility review"
	}
	return "no further action available"
}
