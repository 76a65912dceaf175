package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/agent/actions"
	"travelagent/agent/cache"
	"travelagent/agent/critic"
	"travelagent/agent/planner"
	"travelagent/agent/registry"
	"travelagent/agent/state"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	reg := registry.New(nil)
	require.NoError(t, actions.RegisterDefaults(reg))
	return New(planner.NewRule(), reg, registry.DefaultPreconditions{}, cache.NewMemCache(cache.DefaultCapacity),
		DefaultGuards(), critic.DefaultPolicy(), nil, nil, nil)
}

func TestRun_DrivesDraftToReadyAcrossFullLadder(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t)
	st := state.New("req-1", "故宫", state.Options{})

	outcome, err := o.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, state.StatusReady, outcome.State.Result.Status)
	assert.NotEmpty(t, outcome.State.Draft.Nodes)
	assert.NotEmpty(t, outcome.State.Result.Timeline)
	require.NotNil(t, outcome.CriticResult)
	assert.True(t, outcome.State.Result.Status.Terminal())
}

func TestRun_EmptyInputTerminatesWithoutLooping(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t)
	st := state.New("req-1", "", state.Options{})

	outcome, err := o.Run(context.Background(), st)
	require.NoError(t, err)

	// No nodes were ever resolved, so the ladder's guard fires and the
	// run exits without reaching READY.
	assert.NotEqual(t, state.StatusReady, outcome.State.Result.Status)
}

func TestRun_RecordsObservationsAndDecisionLogPerStep(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t)
	st := state.New("req-1", "故宫", state.Options{})

	outcome, err := o.Run(context.Background(), st)
	require.NoError(t, err)

	assert.NotEmpty(t, outcome.State.React.Observations)
	assert.NotEmpty(t, outcome.State.React.DecisionLog)
	assert.Equal(t, len(outcome.State.React.Observations) > 0, true)
}

func TestRun_RespectsMaxIterationsGuard(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)
	require.NoError(t, actions.RegisterDefaults(reg))
	// A single-iteration budget cannot make it past the first ladder rung,
	// so the run must exit without ever reaching READY.
	o := New(planner.NewRule(), reg, registry.DefaultPreconditions{}, cache.NewMemCache(cache.DefaultCapacity),
		Guards{MaxIterations: 1, MaxDuration: DefaultGuards().MaxDuration}, critic.DefaultPolicy(), nil, nil, nil)

	st := state.New("req-1", "故宫", state.Options{})
	outcome, err := o.Run(context.Background(), st)
	require.NoError(t, err)

	assert.LessOrEqual(t, outcome.Iterations, 1)
	assert.NotEqual(t, state.StatusReady, outcome.State.Result.Status)
}
