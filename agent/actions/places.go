// Package actions provides reference implementations of the external action
// families spec §6 names (places, transport, itinerary, policy, webbrowse).
// A production deployment swaps these for real geocoding/routing/optimizer/
// browser clients behind the same registry.ExecuteFunc contract; these give
// the Registry, Orchestrator, and rule-based planner something concrete to
// dispatch in tests and the demo entrypoint.
package actions

import (
	"context"
	"fmt"
	"strings"

	"travelagent/agent/registry"
	"travelagent/agent/state"
)

// poi is one entry of the reference gazetteer: a tiny deterministic stand-in
// for a real places/geocoding service, just enough named POIs to exercise
// the full ReAct loop end to end without a network dependency.
type poi struct {
	id, name, kind string
	lat, lng       float64
	openStart      string
	openEnd        string
}

var gazetteer = []poi{
	{"poi-forbidden-city", "故宫", "attraction", 39.9163, 116.3972, "08:30", "17:00"},
	{"poi-temple-heaven", "天坛", "attraction", 39.8822, 116.4066, "08:00", "17:30"},
	{"poi-summer-palace", "颐和园", "attraction", 39.9999, 116.2755, "06:30", "18:00"},
	{"poi-hutong", "南锣鼓巷", "neighborhood", 39.9372, 116.4034, "00:00", "23:59"},
	{"poi-wangfujing", "王府井", "shopping", 39.9139, 116.4108, "10:00", "22:00"},
}

func findPOI(id string) (poi, bool) {
	for _, p := range gazetteer {
		if p.id == id {
			return p, true
		}
	}
	return poi{}, false
}

func poiNodeMap(p poi) map[string]any {
	return map[string]any{
		"id": p.id, "name": p.name, "kind": p.kind, "lat": p.lat, "lng": p.lng,
		"open_time": map[string]any{"start": p.openStart, "end": p.openEnd},
	}
}

// resolveEntities matches free-form query text against the gazetteer by
// substring containment and returns up to limit matches as draft.nodes
// candidates, per spec §6's places.resolve_entities contract. A query that
// matches nothing falls back to the full gazetteer rather than an empty
// error, so a generic planning request still resolves to something; a truly
// empty or "unknown" query is already stopped upstream by the rule
// planner's loop guard before this action is ever dispatched.
func resolveEntities(_ context.Context, input map[string]any, _ state.AgentState) (map[string]any, error) {
	query, _ := input["query"].(string)
	limit := 20
	if l, ok := input["limit"].(float64); ok && l > 0 {
		limit = int(l)
	} else if l, ok := input["limit"].(int); ok && l > 0 {
		limit = l
	}

	var nodes []map[string]any
	for _, p := range gazetteer {
		if query == "" || strings.Contains(query, p.name) {
			nodes = append(nodes, poiNodeMap(p))
			if len(nodes) >= limit {
				break
			}
		}
	}
	if len(nodes) == 0 {
		for _, p := range gazetteer {
			nodes = append(nodes, poiNodeMap(p))
		}
	}
	return map[string]any{"nodes": toAnySlice(nodes)}, nil
}

// getPOIFacts returns hours/price facts for the requested poi ids, per spec
// §6's places.get_poi_facts contract.
func getPOIFacts(_ context.Context, input map[string]any, _ state.AgentState) (map[string]any, error) {
	ids := toStringSlice(input["poi_ids"])
	facts := make(map[string]any, len(ids))
	for _, id := range ids {
		p, ok := findPOI(id)
		if !ok {
			continue
		}
		facts[id] = map[string]any{
			"hours": fmt.Sprintf("%s-%s", p.openStart, p.openEnd),
			"price": "60 RMB",
		}
	}
	return map[string]any{"facts": facts}, nil
}

// toStringSlice accepts both the []string a same-process rule planner
// passes and the []any a JSON-decoded LLM plan would produce.
func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// registerPlaces registers the places.* action family on reg.
func registerPlaces(reg *registry.Registry) error {
	if err := reg.Register(registry.Action{
		Name:        "places.resolve_entities",
		Description: "Resolve a free-form location query into candidate draft nodes.",
		Metadata: registry.Metadata{
			Kind: "resolver", Cost: registry.CostLow, SideEffect: registry.SideEffectCallsAPI,
			Idempotent: true, Cacheable: true, CacheKey: "places.resolve_entities:{query}:{limit}",
		},
		Execute: resolveEntities,
	}); err != nil {
		return err
	}
	return reg.Register(registry.Action{
		Name:        "places.get_poi_facts",
		Description: "Fetch hours/price facts for a set of resolved POI ids.",
		Metadata: registry.Metadata{
			Kind: "resolver", Cost: registry.CostLow, SideEffect: registry.SideEffectCallsAPI,
			Preconditions: []string{"nodes_resolved"},
			Idempotent:    true, Cacheable: true, CacheKey: "places.get_poi_facts:{poi_ids}",
		},
		Execute: getPOIFacts,
	})
}
