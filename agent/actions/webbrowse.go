package actions

import (
	"context"
	"fmt"

	"travelagent/agent/registry"
	"travelagent/agent/state"
)

// browse is a reference webbrowse.browse implementation: it never makes a
// real network call (no outbound fetch belongs in a deterministic test
// fixture), instead returning a canned extracted_text keyed off the
// requested URL so mergeWebbrowse has something to append to
// memory.episodic_snippets. A production deployment swaps this for a real
// headless-browser or fetch-and-extract client behind the same
// registry.ExecuteFunc contract.
func browse(_ context.Context, input map[string]any, _ state.AgentState) (map[string]any, error) {
	url, _ := input["url"].(string)
	extractText, _ := input["extract_text"].(bool)
	out := map[string]any{"title": fmt.Sprintf("page at %s", url)}
	if extractText {
		out["extracted_text"] = fmt.Sprintf("current hours and notices for %s", url)
	}
	return out, nil
}

// registerWebbrowse registers the webbrowse.* action family on reg.
func registerWebbrowse(reg *registry.Registry) error {
	return reg.Register(registry.Action{
		Name:        "webbrowse.browse",
		Description: "Fetch and extract content from a URL surfaced in the user's message.",
		Metadata: registry.Metadata{
			Kind: "browser", Cost: registry.CostHigh, SideEffect: registry.SideEffectCallsAPI,
			Idempotent: false, Cacheable: false,
		},
		Execute: browse,
	})
}
