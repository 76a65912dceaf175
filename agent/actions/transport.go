package actions

import (
	"context"
	"math"

	"travelagent/agent/registry"
	"travelagent/agent/state"
)

// buildTimeMatrix computes a pairwise travel-time matrix (minutes) between
// the given node ids, per spec §6's transport.build_time_matrix contract.
// The reference implementation derives minutes from great-circle distance
// at a fixed speed; a real deployment replaces this with a routing API
// call. By default it populates both time_matrix_api and the 1.3x-buffered
// time_matrix_robust in one call; the Repair step's call passes
// "robust": true to recompute only the robust estimate, so a repair never
// clobbers an already-accepted API estimate it wasn't asked to redo.
func buildTimeMatrix(_ context.Context, input map[string]any, st state.AgentState) (map[string]any, error) {
	ids := toStringSlice(input["nodes"])
	if len(ids) == 0 {
		ids = nodeIDsFromState(st)
	}
	robustOnly, _ := input["robust"].(bool)

	build := func(robust bool) map[string]any {
		minutes := make([][]float64, len(ids))
		for i, a := range ids {
			minutes[i] = make([]float64, len(ids))
			for j, b := range ids {
				if i == j {
					continue
				}
				minutes[i][j] = travelMinutes(a, b, robust)
			}
		}
		return map[string]any{"node_ids": toAnyStrings(ids), "minutes": toAnyMatrix(minutes)}
	}

	out := map[string]any{"time_matrix_robust": build(true)}
	if !robustOnly {
		out["time_matrix_api"] = build(false)
	}
	return out, nil
}

// travelMinutes derives a deterministic travel time from great-circle
// distance at 20 km/h (city traffic), with a 1.3x buffer applied for the
// robust estimate to account for congestion variance.
func travelMinutes(aID, bID string, robust bool) float64 {
	a, aok := findPOI(aID)
	b, bok := findPOI(bID)
	if !aok || !bok {
		return 20
	}
	km := haversineKM(a.lat, a.lng, b.lat, b.lng)
	minutes := km / 20 * 60
	if robust {
		minutes *= 1.3
	}
	if minutes < 5 {
		minutes = 5
	}
	return minutes
}

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKM = 6371
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

func toAnyMatrix(m [][]float64) []any {
	out := make([]any, len(m))
	for i, row := range m {
		r := make([]any, len(row))
		for j, v := range row {
			r[j] = v
		}
		out[i] = r
	}
	return out
}

func nodeIDsFromState(st state.AgentState) []string {
	ids := make([]string, 0, len(st.Draft.Nodes))
	for _, n := range st.Draft.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// registerTransport registers the transport.* action family on reg.
func registerTransport(reg *registry.Registry) error {
	return reg.Register(registry.Action{
		Name:        "transport.build_time_matrix",
		Description: "Compute a pairwise travel-time matrix for resolved nodes.",
		Metadata: registry.Metadata{
			Kind: "compute", Cost: registry.CostMed, SideEffect: registry.SideEffectCallsAPI,
			Preconditions: []string{"nodes_resolved", "facts_resolved"},
			Idempotent:    true, Cacheable: true, CacheKey: "transport.build_time_matrix:{nodes}:{robust}",
		},
		Execute: buildTimeMatrix,
	})
}
