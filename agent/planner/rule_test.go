package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/agent/registry"
	"travelagent/agent/state"
)

func allActions() []registry.Action {
	names := []string{
		"places.resolve_entities",
		"places.get_poi_facts",
		"transport.build_time_matrix",
		"itinerary.optimize_day_vrptw",
		"itinerary.repair_cross_day",
		"policy.validate_feasibility",
		"webbrowse.browse",
	}
	out := make([]registry.Action, len(names))
	for i, n := range names {
		out[i] = registry.Action{Name: n}
	}
	return out
}

func TestRulePlanner_LadderProgressesThroughAllRungs(t *testing.T) {
	t.Parallel()

	rp := NewRule()
	st := state.New("req-1", "帮我规划故宫一日游", state.Options{})

	// Rung 1: no nodes resolved yet.
	res, err := rp.Plan(context.Background(), Input{State: st, Available: allActions()})
	require.NoError(t, err)
	require.Len(t, res.ActionCalls, 1)
	assert.Equal(t, "places.resolve_entities", res.ActionCalls[0].Name)

	// Rung 2: nodes resolved, facts missing.
	st.Draft.Nodes = []state.Node{{ID: "poi-forbidden-city", Name: "故宫"}}
	res, err = rp.Plan(context.Background(), Input{State: st, Available: allActions()})
	require.NoError(t, err)
	require.Len(t, res.ActionCalls, 1)
	assert.Equal(t, "places.get_poi_facts", res.ActionCalls[0].Name)

	// Rung 3: facts resolved, no time matrix yet.
	st.Memory.SemanticFacts.POIs = map[string]state.PlaceFacts{"poi-forbidden-city": {Hours: "08:30-17:00"}}
	res, err = rp.Plan(context.Background(), Input{State: st, Available: allActions()})
	require.NoError(t, err)
	require.Len(t, res.ActionCalls, 1)
	assert.Equal(t, "transport.build_time_matrix", res.ActionCalls[0].Name)

	// Rung 4: robust matrix present, no optimization yet.
	st.Compute.TimeMatrixRobust = &state.TimeMatrix{NodeIDs: []string{"poi-forbidden-city"}}
	res, err = rp.Plan(context.Background(), Input{State: st, Available: allActions()})
	require.NoError(t, err)
	require.Len(t, res.ActionCalls, 1)
	assert.Equal(t, "itinerary.optimize_day_vrptw", res.ActionCalls[0].Name)

	// Rung 5: optimized with a draft timeline, still DRAFT status.
	st.Compute.OptimizationResults = []state.OptimizationResult{{Day: 1, Score: 0.9}}
	st.Result.Timeline = []state.TimelineEvent{{Kind: state.TimelineNode, NodeID: "poi-forbidden-city"}}
	res, err = rp.Plan(context.Background(), Input{State: st, Available: allActions()})
	require.NoError(t, err)
	require.Len(t, res.ActionCalls, 1)
	assert.Equal(t, "policy.validate_feasibility", res.ActionCalls[0].Name)

	// Ladder exhausted: status no longer DRAFT, nothing left to propose.
	st.Result.Status = state.StatusReady
	res, err = rp.Plan(context.Background(), Input{State: st, Available: allActions()})
	require.NoError(t, err)
	assert.True(t, res.Done)
}

func TestRulePlanner_EmptyInputTerminatesWithNeedMoreInfo(t *testing.T) {
	t.Parallel()

	rp := NewRule()
	st := state.New("req-1", "  ", state.Options{})

	res, err := rp.Plan(context.Background(), Input{State: st, Available: allActions()})
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "NEED_MORE_INFO:empty_input", res.FinalMessage)
}

func TestRulePlanner_ResolveAttemptsExhaustedTerminates(t *testing.T) {
	t.Parallel()

	rp := NewRule()
	st := state.New("req-1", "某个地方", state.Options{})
	st.React.Observations = []state.Observation{
		{Step: 1, Action: "places.resolve_entities"},
		{Step: 2, Action: "places.resolve_entities"},
	}

	res, err := rp.Plan(context.Background(), Input{State: st, Available: allActions()})
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "NEED_MORE_INFO:resolve_entities_exhausted", res.FinalMessage)
}

func TestRulePlanner_URLInInputShortCircuitsToWebbrowse(t *testing.T) {
	t.Parallel()

	rp := NewRule()
	st := state.New("req-1", "看看 https://example.com/hotel 现在有没有房", state.Options{})

	res, err := rp.Plan(context.Background(), Input{State: st, Available: allActions()})
	require.NoError(t, err)
	require.Len(t, res.ActionCalls, 1)
	assert.Equal(t, "webbrowse.browse", res.ActionCalls[0].Name)
	assert.Equal(t, "https://example.com/hotel", res.ActionCalls[0].Input["url"])
}

func TestRulePlanner_SameActionStreakWithNoAlternativeReportsDone(t *testing.T) {
	t.Parallel()

	rp := NewRule()
	st := state.New("req-1", "帮我规划故宫一日游", state.Options{})
	st.Draft.Nodes = []state.Node{{ID: "poi-forbidden-city"}}
	// Three identical decision-log entries choosing get_poi_facts trips the
	// anti-thrash guard even though facts are still unresolved.
	st.React.DecisionLog = []state.DecisionLogEntry{
		{ChosenAction: "places.get_poi_facts"},
		{ChosenAction: "places.get_poi_facts"},
		{ChosenAction: "places.get_poi_facts"},
	}

	available := []registry.Action{{Name: "transport.build_time_matrix"}}
	res, err := rp.Plan(context.Background(), Input{State: st, Available: available})
	require.NoError(t, err)
	// The streak's action isn't even offered this round, so the ladder
	// already can't propose it; with facts still unresolved no other rung
	// applies either, and the planner reports done rather than thrash.
	assert.True(t, res.Done)
}
