// Package orchestrator drives the agent's ReAct loop: Plan, dispatch the
// first parallelizable group of actions, Observe their results, run the
// Critic, and Repair or terminate. It wires together the Planner, Registry,
// Action Cache, Dependency Analyzer, and Critic behind a single Run call.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"travelagent/agent/cache"
	"travelagent/agent/critic"
	"travelagent/agent/dep"
	"travelagent/agent/planner"
	"travelagent/agent/registry"
	"travelagent/agent/state"
	"travelagent/agent/telemetry"
)

// Outcome is the terminal result of one Run call.
type Outcome struct {
	State        state.AgentState
	FinalMessage string
	Iterations   int
	CriticResult *critic.Result
}

// Guards bound the loop so a misbehaving planner or a feasibility check that
// never stabilizes cannot run forever.
type Guards struct {
	MaxIterations int
	MaxDuration   time.Duration
}

// DefaultGuards matches spec's default loop bounds.
func DefaultGuards() Guards {
	return Guards{MaxIterations: 8, MaxDuration: 60 * time.Second}
}

// Orchestrator runs the Plan/Act/Observe/Critic/Repair loop for one request.
type Orchestrator struct {
	planner  planner.Planner
	registry *registry.Registry
	preds    registry.PreconditionChecker
	cache    cache.Cache
	guards   Guards
	policy   critic.Policy
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	tracer   telemetry.Tracer
}

// New constructs an Orchestrator. A nil cache disables memoization; a zero
// Guards value falls back to DefaultGuards(); a nil preds defaults to
// registry.DefaultPreconditions.
func New(p planner.Planner, reg *registry.Registry, preds registry.PreconditionChecker, c cache.Cache, guards Guards, policy critic.Policy, logger telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) *Orchestrator {
	if guards.MaxIterations <= 0 && guards.MaxDuration <= 0 {
		guards = DefaultGuards()
	}
	if preds == nil {
		preds = registry.DefaultPreconditions{}
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Orchestrator{planner: p, registry: reg, preds: preds, cache: c, guards: guards, policy: policy, logger: logger, metrics: metrics, tracer: tracer}
}

// Run executes the loop starting from st until a terminal status or
// NEED_MORE_INFO is reached, the Critic passes, or a guard or planner
// failure ends it. On exit, finalizeStatus turns a remaining DRAFT into
// TIMEOUT or FAILED where one applies; otherwise the status stays DRAFT.
func (o *Orchestrator) Run(ctx context.Context, st state.AgentState) (Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.run")
	defer span.End()

	if st.React.MaxSteps <= 0 {
		st.React.MaxSteps = o.guards.MaxIterations
	}
	deadline := time.Now().Add(o.guards.MaxDuration)

	var lastCritic *critic.Result
	var finalMessage string
	var lastObservations []planner.Observation

	for {
		if st.Result.Status.Terminal() || st.Result.Status == state.StatusNeedMoreInfo {
			break
		}
		if o.guards.MaxIterations > 0 && st.React.Step >= o.guards.MaxIterations {
			break
		}
		if o.guards.MaxDuration > 0 && time.Now().After(deadline) {
			break
		}

		plan, err := o.planner.Plan(ctx, planner.Input{State: st, Available: o.registry.List(), Observations: lastObservations})
		if err != nil {
			o.logger.Warn(ctx, "orchestrator: plan failed", "error", err.Error())
			break
		}

		if plan.Done || len(plan.ActionCalls) == 0 {
			cr := critic.ValidateFeasibility(st, o.policy)
			lastCritic = &cr
			o.metrics.IncCounter("orchestrator.critic_run", 1)
			if cr.Pass {
				st.Result.Status = state.StatusReady
				finalMessage = plan.FinalMessage
				break
			}
			var progressed bool
			st, progressed = o.repair(ctx, st, cr)
			st.React.Step++
			if !progressed {
				finalMessage = plan.FinalMessage
			}
			continue
		}

		preState := st
		candidates := o.resolveCandidates(plan.ActionCalls)
		group := dep.FirstParallelGroup(candidates, st)
		if len(group) == 0 {
			st.React.Step++
			continue
		}

		results := o.act(ctx, st, group)
		st = o.mergeAll(st, group, results)
		st = o.observe(st, group, results)
		st = o.logDecisions(st, group, preState)
		st.Observability.ToolCalls += len(group)
		st.React.Step++

		lastObservations = toPlannerObservations(results)

		if st.Result.Status.Terminal() || st.Result.Status == state.StatusNeedMoreInfo {
			break
		}

		cr := critic.ValidateFeasibility(st, o.policy)
		lastCritic = &cr
		if cr.Pass && len(st.Result.Timeline) > 0 {
			st.Result.Status = state.StatusReady
			break
		}
	}

	st = finalizeStatus(st, time.Now().After(deadline))

	if st.Result.Status == state.StatusReady {
		o.metrics.IncCounter("orchestrator.run_completed", 1, "iterations", fmt.Sprint(st.React.Step))
	}
	return Outcome{State: st, FinalMessage: finalMessage, Iterations: st.React.Step, CriticResult: lastCritic}, nil
}

// finalizeStatus applies spec §4.8's loop-exit classification: a run that
// exits the loop still in DRAFT becomes TIMEOUT if the budget was exhausted,
// FAILED if a hard-pinned node was dropped from the schedule, or is left in
// DRAFT otherwise (e.g. the planner returned Done with nothing left to try).
func finalizeStatus(st state.AgentState, budgetExhausted bool) state.AgentState {
	if st.Result.Status != state.StatusDraft {
		return st
	}
	switch {
	case budgetExhausted:
		st.Result.Status = state.StatusTimeout
	case hardNodeDropped(st):
		st.Result.Status = state.StatusFailed
	}
	return st
}

func (o *Orchestrator) resolveCandidates(calls []planner.ActionCall) []dep.Candidate {
	candidates := make([]dep.Candidate, 0, len(calls))
	for _, call := range calls {
		action, ok := o.registry.Get(call.Name)
		if !ok {
			o.logger.Warn(context.Background(), "orchestrator: planner requested unknown action", "action", call.Name)
			continue
		}
		candidates = append(candidates, dep.Candidate{Action: action, Input: call.Input})
	}
	return candidates
}

// act runs group's actions concurrently, consulting the cache before each
// call and recording results into it after. All actions in the group observe
// the same pre-iteration state snapshot st; none of them may mutate it.
func (o *Orchestrator) act(ctx context.Context, st state.AgentState, group []dep.Candidate) []mergeResult {
	results := make([]mergeResult, len(group))
	var wg sync.WaitGroup
	for i, c := range group {
		wg.Add(1)
		go func(i int, c dep.Candidate) {
			defer wg.Done()
			results[i] = mergeResult{name: c.Action.Name}
			key := cache.GenerateCacheKey(c.Action.Name, c.Input, c.Action.Metadata.CacheKey)
			if o.cache != nil && c.Action.Metadata.Cacheable {
				if cached, hit := o.cache.Get(ctx, key); hit {
					o.metrics.IncCounter("orchestrator.cache_hit", 1, "action", c.Action.Name)
					results[i].output = cached
					return
				}
			}
			if !o.registry.CheckPreconditions(ctx, c.Action.Name, st, o.preds) {
				results[i].err = fmt.Errorf("preconditions not satisfied for %s", c.Action.Name)
				return
			}
			out, err := c.Action.Execute(ctx, c.Input, st)
			if err != nil {
				results[i].err = err
				return
			}
			results[i].output = out
			if o.cache != nil && c.Action.Metadata.Cacheable {
				_ = o.cache.Set(ctx, key, out, 0)
			}
		}(i, c)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			o.logger.Warn(ctx, "orchestrator: action failed", "action", r.name, "error", r.err.Error())
		}
	}
	return results
}

// mergeAll folds every successful result into st serially, in candidate
// order, so a later action's write is never clobbered by an earlier one's
// stale read — ordering guarantee (b) of spec §5.
func (o *Orchestrator) mergeAll(st state.AgentState, group []dep.Candidate, results []mergeResult) state.AgentState {
	for i, r := range results {
		if r.err != nil {
			continue
		}
		st = mergeAction(st, group[i].Action.Name, r.output)
	}
	return st
}

// observe appends one {step, action, timestamp} entry per executed action
// to react.observations, per spec §4.8 step 3.
func (o *Orchestrator) observe(st state.AgentState, group []dep.Candidate, results []mergeResult) state.AgentState {
	now := time.Now().UTC()
	for i := range results {
		st.React.Observations = append(st.React.Observations, state.Observation{
			Step:      st.React.Step,
			Action:    group[i].Action.Name,
			Timestamp: now,
		})
	}
	return st
}

// logDecisions appends one decision_log entry per action dispatched this
// iteration, each referencing an action considered in the same iteration per
// invariant 3, with a reason_code derived from the pre-action state.
func (o *Orchestrator) logDecisions(st state.AgentState, group []dep.Candidate, preState state.AgentState) state.AgentState {
	for _, c := range group {
		st.React.DecisionLog = append(st.React.DecisionLog, state.DecisionLogEntry{
			Step:         st.React.Step,
			ChosenAction: c.Action.Name,
			ReasonCode:   reasonCodeFor(c.Action.Name, preState),
			Facts: map[string]any{
				"nodes": len(preState.Draft.Nodes),
				"facts": len(preState.Memory.SemanticFacts.POIs),
			},
			PolicyID: "default",
		})
	}
	return st
}

func toPlannerObservations(results []mergeResult) []planner.Observation {
	out := make([]planner.Observation, 0, len(results))
	for _, r := range results {
		obs := planner.Observation{Name: r.name, Output: r.output}
		if r.err != nil {
			obs.Err = r.err.Error()
		}
		out = append(out, obs)
	}
	return out
}
