package critic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/agent/state"
)

func baseState() state.AgentState {
	st := state.New("req-1", "input", state.Options{})
	st.Compute.TimeMatrixRobust = &state.TimeMatrix{NodeIDs: []string{"poi-1"}, Minutes: [][]float64{{0}}}
	return st
}

func TestValidateFeasibility_PassesOnEmptySchedule(t *testing.T) {
	t.Parallel()

	res := ValidateFeasibility(baseState(), DefaultPolicy())
	assert.True(t, res.Pass)
	assert.Empty(t, res.Violations)
}

func TestValidateFeasibility_MissingRobustMatrix(t *testing.T) {
	t.Parallel()

	st := state.New("req-1", "input", state.Options{})
	res := ValidateFeasibility(st, DefaultPolicy())

	assert.False(t, res.Pass)
	assert.Contains(t, res.Violations, ViolationRobustTimeMissing)
}

func TestValidateFeasibility_TimeWindowConflict(t *testing.T) {
	t.Parallel()

	st := baseState()
	open := state.TimeWindow{Start: "08:30", End: "17:00"}
	st.Draft.Nodes = []state.Node{{ID: "poi-1", OpenTime: &open}}
	st.Result.Timeline = []state.TimelineEvent{
		{Kind: state.TimelineNode, NodeID: "poi-1", Day: 1, Start: "07:00", End: "09:00"},
	}

	res := ValidateFeasibility(st, DefaultPolicy())
	assert.False(t, res.Pass)
	assert.Contains(t, res.Violations, ViolationTimeWindowConflict)
}

func TestValidateFeasibility_DayBoundaryExceeded(t *testing.T) {
	t.Parallel()

	st := baseState()
	st.Result.Timeline = []state.TimelineEvent{
		{Kind: state.TimelineNode, NodeID: "poi-1", Day: 1, Start: "21:00", End: "23:00"},
	}

	res := ValidateFeasibility(st, DefaultPolicy())
	assert.Contains(t, res.Violations, ViolationDayBoundaryExceeded)
}

func TestValidateFeasibility_LunchMissingWhenTimelineNonEmpty(t *testing.T) {
	t.Parallel()

	st := baseState()
	st.Result.Timeline = []state.TimelineEvent{
		{Kind: state.TimelineNode, NodeID: "poi-1", Day: 1, Start: "10:00", End: "11:00"},
	}

	res := ValidateFeasibility(st, DefaultPolicy())
	assert.Contains(t, res.Violations, ViolationLunchMissing)
}

func TestValidateFeasibility_LunchAnchorSkippedWhenTimelineEmpty(t *testing.T) {
	t.Parallel()

	res := ValidateFeasibility(baseState(), DefaultPolicy())
	assert.NotContains(t, res.Violations, ViolationLunchMissing)
}

func TestValidateFeasibility_LunchOutsideWindowViolates(t *testing.T) {
	t.Parallel()

	st := baseState()
	st.Result.Timeline = []state.TimelineEvent{
		{Kind: state.TimelineLunch, Day: 1, Start: "09:00", End: "10:00"},
	}

	res := ValidateFeasibility(st, DefaultPolicy())
	assert.Contains(t, res.Violations, ViolationLunchWindow)
}

func TestValidateFeasibility_MultipleLunchesViolates(t *testing.T) {
	t.Parallel()

	st := baseState()
	st.Result.Timeline = []state.TimelineEvent{
		{Kind: state.TimelineLunch, Day: 1, Start: "12:00", End: "13:00"},
		{Kind: state.TimelineLunch, Day: 1, Start: "18:00", End: "18:30"},
	}

	res := ValidateFeasibility(st, DefaultPolicy())
	assert.Contains(t, res.Violations, ViolationLunchMultiple)
}

func TestValidateFeasibility_WaitNotVisibleAboveThreshold(t *testing.T) {
	t.Parallel()

	st := baseState()
	st.Result.Timeline = []state.TimelineEvent{
		{Kind: state.TimelineNode, NodeID: "poi-1", Day: 1, Start: "10:00", End: "11:00", WaitMin: 20},
	}

	res := ValidateFeasibility(st, DefaultPolicy())
	assert.Contains(t, res.Violations, ViolationWaitNotVisible)
}

func TestValidateFeasibility_WaitVisibleWhenSiblingWaitEventExists(t *testing.T) {
	t.Parallel()

	st := baseState()
	st.Result.Timeline = []state.TimelineEvent{
		{Kind: state.TimelineNode, NodeID: "poi-1", Day: 1, Start: "10:00", End: "11:00", WaitMin: 20},
		{Kind: state.TimelineWait, NodeID: "poi-1", Day: 1, Start: "11:00", End: "11:20"},
	}

	res := ValidateFeasibility(st, DefaultPolicy())
	assert.NotContains(t, res.Violations, ViolationWaitNotVisible)
}

func TestValidateFeasibility_ScheduleMissingWhenOptimizedButNoTimeline(t *testing.T) {
	t.Parallel()

	st := baseState()
	st.Compute.OptimizationResults = []state.OptimizationResult{{Day: 1, Score: 0.8}}

	res := ValidateFeasibility(st, DefaultPolicy())
	assert.Contains(t, res.Violations, ViolationScheduleMissing)
}

func TestValidateFeasibility_SlackAndWaitComputedFromTimeline(t *testing.T) {
	t.Parallel()

	st := baseState()
	st.Result.Timeline = []state.TimelineEvent{
		{Kind: state.TimelineLunch, Day: 1, Start: "11:30", End: "12:30"},
		{Kind: state.TimelineWait, Day: 1, Start: "12:30", End: "12:40", WaitMin: 10},
	}

	res := ValidateFeasibility(st, DefaultPolicy())
	require.NotNil(t, res.TotalWaitMin)
	assert.Equal(t, 10, *res.TotalWaitMin)
	require.NotNil(t, res.MinSlackMin)
	// day boundary ends at 22:00 (1320 min); last event ends at 12:40 (760 min).
	assert.Equal(t, 1320-760, *res.MinSlackMin)
}

func TestResult_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pass", Result{Pass: true}.String())
	assert.Equal(t, "fail: TIME_WINDOW_CONFLICT,LUNCH_MISSING",
		Result{Violations: []Violation{ViolationTimeWindowConflict, ViolationLunchMissing}}.String())
}
