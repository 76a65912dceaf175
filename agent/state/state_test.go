package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AppliesSpecDefaults(t *testing.T) {
	t.Parallel()

	st := New("req-1", "帮我规划行程", Options{TripID: "trip-1"})

	assert.Equal(t, "req-1", st.RequestID)
	assert.Equal(t, "trip-1", st.Trip.TripID)
	assert.Equal(t, 1, st.Trip.Days)
	require.Len(t, st.Trip.DayBoundaries, 1)
	assert.Equal(t, TimeWindow{Start: "10:00", End: "22:00"}, st.Trip.DayBoundaries[0])
	assert.True(t, st.Trip.LunchBreak.Enabled)
	assert.Equal(t, 60, st.Trip.LunchBreak.DurationMin)
	assert.Equal(t, TimeWindow{Start: "11:30", End: "13:30"}, st.Trip.LunchBreak.Window)
	assert.Equal(t, PacingNormal, st.Trip.Pacing)
	assert.Equal(t, 8, st.React.MaxSteps)
	assert.Equal(t, StatusDraft, st.Result.Status)
}

func TestClone_DoesNotAliasSliceFields(t *testing.T) {
	t.Parallel()

	orig := New("req-1", "input", Options{})
	orig.Draft.Nodes = []Node{{ID: "poi-1", Name: "故宫"}}
	orig.Result.Timeline = []TimelineEvent{{Kind: TimelineNode, NodeID: "poi-1"}}
	orig.Memory.SemanticFacts.POIs = map[string]PlaceFacts{"poi-1": {Hours: "08:00-17:00"}}

	clone := orig.Clone()
	clone.Draft.Nodes[0].Name = "mutated"
	clone.Result.Timeline[0].NodeID = "mutated"
	clone.Memory.SemanticFacts.POIs["poi-1"] = PlaceFacts{Hours: "mutated"}

	assert.Equal(t, "故宫", orig.Draft.Nodes[0].Name)
	assert.Equal(t, "poi-1", orig.Result.Timeline[0].NodeID)
	assert.Equal(t, "08:00-17:00", orig.Memory.SemanticFacts.POIs["poi-1"].Hours)
}

func TestClone_AppendDoesNotGrowOriginal(t *testing.T) {
	t.Parallel()

	orig := New("req-1", "input", Options{})
	orig.Draft.Nodes = []Node{{ID: "poi-1"}}

	clone := orig.Clone()
	clone.Draft.Nodes = append(clone.Draft.Nodes, Node{ID: "poi-2"})

	assert.Len(t, orig.Draft.Nodes, 1)
	assert.Len(t, clone.Draft.Nodes, 2)
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusReady, StatusFailed, StatusTimeout} {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []Status{StatusDraft, StatusNeedMoreInfo, StatusNeedConsent} {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}
