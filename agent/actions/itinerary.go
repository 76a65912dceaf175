package actions

import (
	"context"
	"fmt"
	"sort"

	"travelagent/agent/registry"
	"travelagent/agent/state"
)

// optimizeDayVRPTW builds a single-day schedule from the resolved nodes and
// travel-time matrix, per spec §6's itinerary.optimize_day_vrptw contract.
// The reference implementation is a simple in-order sequencer (nodes are
// placed in the order given, not reordered by distance) with a
// fixed 90 minute dwell per node and a midday lunch anchor inserted at the
// trip's configured lunch window; a real deployment replaces this with an
// actual VRPTW solver. It always produces a visitable schedule (it drops
// nodes that cannot fit before the day boundary rather than overrunning it),
// so the Critic's day-boundary check passes on the first attempt absent a
// pinned hard node that cannot be placed.
func optimizeDayVRPTW(_ context.Context, input map[string]any, st state.AgentState) (map[string]any, error) {
	ids := toStringSlice(input["nodes"])
	if len(ids) == 0 {
		ids = nodeIDsFromState(st)
	}
	matrix := st.Compute.TimeMatrixRobust
	if matrix == nil {
		matrix = st.Compute.TimeMatrixAPI
	}

	dayStart, dayEnd := dayBounds(st, 1)
	lunch := st.Trip.LunchBreak

	const dwellMin = 90
	clock := dayStart
	var timeline []map[string]any
	var dropped []string
	lunchPlaced := false

	for i, id := range ids {
		if i > 0 {
			clock += travelBetween(matrix, ids[i-1], id)
		}
		if !lunchPlaced && lunch.Enabled && clock >= hhmmToMin(lunch.Window.Start) {
			lunchStart := clock
			lunchEnd := lunchStart + lunch.DurationMin
			timeline = append(timeline, map[string]any{
				"kind": string(state.TimelineLunch), "day": 1,
				"start": minToHHMM(lunchStart), "end": minToHHMM(lunchEnd),
			})
			clock = lunchEnd
			lunchPlaced = true
		}
		end := clock + dwellMin
		if end > dayEnd {
			dropped = append(dropped, id)
			continue
		}
		timeline = append(timeline, map[string]any{
			"kind": string(state.TimelineNode), "node_id": id, "day": 1,
			"start": minToHHMM(clock), "end": minToHHMM(end),
		})
		clock = end
	}
	if !lunchPlaced && lunch.Enabled {
		lunchStart := hhmmToMin(lunch.Window.Start)
		timeline = append(timeline, map[string]any{
			"kind": string(state.TimelineLunch), "day": 1,
			"start": minToHHMM(lunchStart), "end": minToHHMM(lunchStart + lunch.DurationMin),
		})
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i]["start"].(string) < timeline[j]["start"].(string) })

	results := []map[string]any{{"day": 1, "score": scoreFor(len(timeline), len(dropped))}}
	out := map[string]any{"results": toAnySlice(results), "timeline": toAnySlice(timeline)}
	if len(dropped) > 0 {
		out["dropped_items"] = toAnyStrings(dropped)
	}
	return out, nil
}

// repairCrossDay re-runs the day-1 optimizer over every draft node after a
// feasibility failure (the Repair step dispatches it for
// TIME_WINDOW_CONFLICT). Its input is ignored, and it does not move nodes
// across days: it reruns the same single-day placement (see DESIGN.md's
// decision on itinerary.repair_cross_day).
func repairCrossDay(ctx context.Context, input map[string]any, st state.AgentState) (map[string]any, error) {
	return optimizeDayVRPTW(ctx, map[string]any{"nodes": nodeIDsFromState(st)}, st)
}

func dayBounds(st state.AgentState, day int) (int, int) {
	idx := day - 1
	if idx < 0 || idx >= len(st.Trip.DayBoundaries) {
		return hhmmToMin("10:00"), hhmmToMin("22:00")
	}
	b := st.Trip.DayBoundaries[idx]
	return hhmmToMin(b.Start), hhmmToMin(b.End)
}

func travelBetween(m *state.TimeMatrix, fromID, toID string) int {
	if m == nil {
		return 20
	}
	fromIdx, toIdx := -1, -1
	for i, id := range m.NodeIDs {
		if id == fromID {
			fromIdx = i
		}
		if id == toID {
			toIdx = i
		}
	}
	if fromIdx < 0 || toIdx < 0 || fromIdx >= len(m.Minutes) || toIdx >= len(m.Minutes[fromIdx]) {
		return 20
	}
	return int(m.Minutes[fromIdx][toIdx])
}

func hhmmToMin(s string) int {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0
	}
	return h*60 + m
}

func minToHHMM(total int) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60%24, total%60)
}

func scoreFor(placed, dropped int) float64 {
	if placed+dropped == 0 {
		return 0
	}
	return float64(placed) / float64(placed+dropped)
}

func toAnySlice(m []map[string]any) []any {
	out := make([]any, len(m))
	for i, v := range m {
		out[i] = v
	}
	return out
}

func toAnyStrings(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// registerItinerary registers the itinerary.* action family on reg.
func registerItinerary(reg *registry.Registry) error {
	if err := reg.Register(registry.Action{
		Name:        "itinerary.optimize_day_vrptw",
		Description: "Sequence resolved nodes into a single-day schedule respecting the lunch anchor and day boundary.",
		Metadata: registry.Metadata{
			Kind: "optimizer", Cost: registry.CostHigh, SideEffect: registry.SideEffectNone,
			Preconditions: []string{"robust_matrix_built"},
			Idempotent:    true, Cacheable: false,
		},
		Execute: optimizeDayVRPTW,
	}); err != nil {
		return err
	}
	return reg.Register(registry.Action{
		Name:        "itinerary.repair_cross_day",
		Description: "Re-run placement after a feasibility failure.",
		Metadata: registry.Metadata{
			Kind: "optimizer", Cost: registry.CostHigh, SideEffect: registry.SideEffectNone,
			Idempotent: true, Cacheable: false,
		},
		Execute: repairCrossDay,
	})
}
