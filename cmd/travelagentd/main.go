// Command travelagentd wires the Router, Orchestrator, Agent Entry, and the
// reference action catalog into a single process and runs a handful of
// requests through it, printing the resulting response envelopes. It is a
// demonstration harness, not a production server: a real deployment would
// put Entry.RouteAndRun behind an HTTP or gRPC handler instead.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"travelagent/agent/actions"
	"travelagent/agent/cache"
	"travelagent/agent/config"
	"travelagent/agent/critic"
	"travelagent/agent/dedup"
	"travelagent/agent/entry"
	"travelagent/agent/journal"
	"travelagent/agent/model/anthropic"
	"travelagent/agent/planner"
	"travelagent/agent/registry"
	"travelagent/agent/router"
	"travelagent/agent/state"
	"travelagent/agent/telemetry"
)

func main() {
	ctx := context.Background()

	logger := telemetry.NewNoopLogger()
	metrics := telemetry.NewNoopMetrics()
	tracer := telemetry.NewNoopTracer()

	reg := registry.New(logger)
	if err := actions.RegisterDefaults(reg); err != nil {
		fmt.Fprintln(os.Stderr, "register actions:", err)
		os.Exit(1)
	}

	rulePlanner := planner.NewRule()
	plan := buildPlanner(rulePlanner, logger)

	e := entry.New(entry.Entry{
		Store:    state.NewMemStore(func() string { return uuid.NewString() }),
		Router:   router.New(config.DefaultRouterConfig(), logger, metrics),
		Fast:     nil,
		Dedup:    dedup.NewMemDedup(dedup.DefaultWindow),
		Journal:  journal.NewMemJournal(),
		Planner:  plan,
		Registry: reg,
		Preds:    registry.DefaultPreconditions{},
		Cache:    cache.NewMemCache(cache.DefaultCapacity),
		Policy:   critic.DefaultPolicy(),
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	})

	for _, msg := range sampleRequests() {
		req := entry.Request{
			RequestID: uuid.NewString(),
			UserID:    "demo-user",
			Message:   msg,
			Options:   entry.Options{AllowWebbrowse: true},
		}
		resp, err := e.RouteAndRun(ctx, req)
		if err != nil {
			fmt.Fprintln(os.Stderr, "route_and_run:", err)
			continue
		}
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
	}
}

// buildPlanner wires an Anthropic-backed LLM Planner in front of rule when
// ANTHROPIC_API_KEY is set, falling back to the rule-based planner alone
// otherwise (it is, per design, a complete planner on its own).
func buildPlanner(rule *planner.RulePlanner, logger telemetry.Logger) planner.Planner {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return rule
	}
	client, err := anthropic.NewFromAPIKey(apiKey, "claude-3-5-sonnet-latest")
	if err != nil {
		logger.Warn(context.Background(), "travelagentd: failed to build anthropic client, using rule planner only", "error", err.Error())
		return rule
	}
	llm, err := planner.New(client, 2, logger)
	if err != nil {
		logger.Warn(context.Background(), "travelagentd: failed to build llm planner, using rule planner only", "error", err.Error())
		return rule
	}
	return planner.NewComposite(llm, rule, nil, logger)
}

func sampleRequests() []string {
	return []string{
		"帮我规划故宫和天坛一日游，既要看日出又要避开人流高峰",
		"故宫今天几点开门？现在官网说了吗",
		"随便安排一下",
	}
}
