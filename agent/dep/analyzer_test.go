package dep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/agent/registry"
	"travelagent/agent/state"
)

func actionNamed(name string, preconditions ...string) registry.Action {
	return registry.Action{Name: name, Metadata: registry.Metadata{Preconditions: preconditions}}
}

func TestFindParallelizableActions_EmptyInput(t *testing.T) {
	t.Parallel()

	groups := FindParallelizableActions(nil, state.AgentState{})
	assert.Nil(t, groups)
}

func TestFindParallelizableActions_IndependentActionsGroupTogether(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		{Action: actionNamed("places.resolve_entities")},
		{Action: actionNamed("webbrowse.browse")},
	}

	groups := FindParallelizableActions(candidates, state.AgentState{})
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestFindParallelizableActions_WriteWriteConflictSplits(t *testing.T) {
	t.Parallel()

	// Both actions write result.timeline, so they cannot share a group.
	candidates := []Candidate{
		{Action: actionNamed("itinerary.optimize_day_vrptw")},
		{Action: actionNamed("itinerary.repair_cross_day")},
	}

	groups := FindParallelizableActions(candidates, state.AgentState{})
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 1)
	assert.Len(t, groups[1], 1)
}

func TestFindParallelizableActions_ReadWriteConflictSplits(t *testing.T) {
	t.Parallel()

	// get_poi_facts requires nodes_resolved (which resolve_entities writes
	// via draft.nodes); spec.Preconditions declares the dependency directly.
	candidates := []Candidate{
		{Action: actionNamed("places.resolve_entities")},
		{Action: actionNamed("places.get_poi_facts", "draft.nodes")},
	}

	groups := FindParallelizableActions(candidates, state.AgentState{})
	require.Len(t, groups, 2)
}

func TestFindParallelizableActions_UnrecognizedNamesGroupTogether(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		{Action: actionNamed("custom.unknown_action_a")},
		{Action: actionNamed("custom.unknown_action_b")},
	}

	// Neither has an inferred side effect path, so anyOverlap never fires and
	// they are compatible (no conflict detected): unknown actions only
	// conflict through paths expressed via declared Preconditions.
	groups := FindParallelizableActions(candidates, state.AgentState{})
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestFirstParallelGroup_SingleCandidate(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{{Action: actionNamed("places.resolve_entities")}}
	group := FirstParallelGroup(candidates, state.AgentState{})
	require.Len(t, group, 1)
	assert.Equal(t, "places.resolve_entities", group[0].Action.Name)
}

func TestFirstParallelGroup_Empty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FirstParallelGroup(nil, state.AgentState{}))
}
