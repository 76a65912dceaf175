package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/agent/state"
)

type stubPlanner struct {
	result Result
	err    error
	calls  int
}

func (s *stubPlanner) Plan(_ context.Context, _ Input) (Result, error) {
	s.calls++
	return s.result, s.err
}

func TestComposite_UsesLLMResultWhenUsable(t *testing.T) {
	t.Parallel()

	llm := &stubPlanner{result: Result{ActionCalls: []ActionCall{{Name: "places.resolve_entities"}}}}
	rule := &stubPlanner{result: Result{Done: true, FinalMessage: "should not be used"}}
	c := NewComposite(llm, rule, nil, nil)

	res, err := c.Plan(context.Background(), Input{State: state.New("req-1", "x", state.Options{})})
	require.NoError(t, err)
	assert.Equal(t, "places.resolve_entities", res.ActionCalls[0].Name)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, 0, rule.calls)
}

func TestComposite_FallsBackToRuleOnLLMError(t *testing.T) {
	t.Parallel()

	llm := &stubPlanner{err: errors.New("llm timeout")}
	rule := &stubPlanner{result: Result{Done: true, FinalMessage: "rule fallback"}}
	c := NewComposite(llm, rule, nil, nil)

	res, err := c.Plan(context.Background(), Input{State: state.New("req-1", "x", state.Options{})})
	require.NoError(t, err)
	assert.Equal(t, "rule fallback", res.FinalMessage)
	assert.Equal(t, 1, rule.calls)
}

func TestComposite_FallsBackToRuleOnEmptyResult(t *testing.T) {
	t.Parallel()

	llm := &stubPlanner{result: Result{}}
	rule := &stubPlanner{result: Result{Done: true, FinalMessage: "rule fallback"}}
	c := NewComposite(llm, rule, nil, nil)

	res, err := c.Plan(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, "rule fallback", res.FinalMessage)
}

func TestComposite_FallsBackToRuleOnBlockedAction(t *testing.T) {
	t.Parallel()

	llm := &stubPlanner{result: Result{ActionCalls: []ActionCall{{Name: "payment.charge"}}}}
	rule := &stubPlanner{result: Result{Done: true, FinalMessage: "rule fallback"}}
	blocked := func(name string) bool { return name == "payment.charge" }
	c := NewComposite(llm, rule, blocked, nil)

	res, err := c.Plan(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, "rule fallback", res.FinalMessage)
}

func TestComposite_NilLLMUsesRuleDirectly(t *testing.T) {
	t.Parallel()

	rule := &stubPlanner{result: Result{Done: true, FinalMessage: "rule only"}}
	c := NewComposite(nil, rule, nil, nil)

	res, err := c.Plan(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, "rule only", res.FinalMessage)
	assert.Equal(t, 1, rule.calls)
}

func TestComposite_DoneResultFromLLMIsUsedDirectly(t *testing.T) {
	t.Parallel()

	llm := &stubPlanner{result: Result{Done: true, FinalMessage: "llm says done"}}
	rule := &stubPlanner{result: Result{Done: true, FinalMessage: "should not be used"}}
	c := NewComposite(llm, rule, nil, nil)

	res, err := c.Plan(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, "llm says done", res.FinalMessage)
	assert.Equal(t, 0, rule.calls)
}
