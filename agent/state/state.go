// Package state defines AgentState, the per-request working memory the
// Orchestrator and fast executor mutate as they plan, act, and repair an
// itinerary draft. All mutations are copy-on-write: callers never get a
// pointer into storage, only independent values.
package state

import "time"

type (
	// Status is the coarse-grained lifecycle state of a request.
	Status string

	// Pacing controls how tightly a day's schedule is packed.
	Pacing string

	// TimeWindow is a half-open clock interval expressed as "HH:MM" strings.
	TimeWindow struct {
		Start string
		End   string
	}

	// LunchBreak configures the lunch anchor constraint checked by the critic.
	LunchBreak struct {
		Enabled     bool
		DurationMin int
		Window      TimeWindow
	}

	// Trip captures the caller-supplied trip shape and pacing preference.
	Trip struct {
		TripID        string
		Days          int
		DayBoundaries []TimeWindow
		LunchBreak    LunchBreak
		Pacing        Pacing
	}

	// Node is a resolved point-of-interest entity placed (or candidate for
	// placement) on the itinerary draft.
	Node struct {
		ID       string
		Name     string
		Kind     string
		Lat      float64
		Lng      float64
		OpenTime *TimeWindow
	}

	// Edit records a manual mutation the user or a CRUD action applied to the draft.
	Edit struct {
		Op        string
		NodeID    string
		Timestamp time.Time
	}

	// Draft is the in-progress itinerary: resolved nodes plus user-pinned
	// hard/soft constraints and the edit trail.
	Draft struct {
		Nodes     []Node
		HardNodes []Node
		SoftNodes []Node
		Edits     []Edit
	}

	// PlaceFacts holds POI-level facts resolved by places.get_poi_facts,
	// keyed by node id.
	PlaceFacts struct {
		Hours string
		Price string
		Extra map[string]any
	}

	// SemanticFacts is the subset of memory populated once nodes are resolved.
	SemanticFacts struct {
		POIs  map[string]PlaceFacts
		Rules []string
	}

	// Memory is long-lived context carried across the request: resolved facts,
	// free-form episodic notes (e.g. from webbrowse), and an opaque user profile.
	Memory struct {
		SemanticFacts     SemanticFacts
		EpisodicSnippets  []string
		UserProfile       map[string]any
	}

	// TimeMatrix is a pairwise travel-time table between nodes, in minutes.
	TimeMatrix struct {
		NodeIDs []string
		Minutes [][]float64
	}

	// OptimizationResult is one candidate schedule produced by an
	// itinerary.optimize_* action.
	OptimizationResult struct {
		Day      int
		Score    float64
		Produced time.Time
	}

	// Compute holds derived artifacts: clustering, time matrices, optimization
	// candidates, and a robustness score.
	Compute struct {
		Clusters           []string
		TimeMatrixAPI      *TimeMatrix
		TimeMatrixRobust   *TimeMatrix
		OptimizationResults []OptimizationResult
		Robustness         float64
	}

	// DecisionLogEntry records why the orchestrator chose an action during a
	// given ReAct step, for explain surfaces and audits.
	DecisionLogEntry struct {
		Step         int
		ChosenAction string
		ReasonCode   string
		Facts        map[string]any
		PolicyID     string
	}

	// Observation records one executed action for a ReAct step.
	Observation struct {
		Step      int
		Action    string
		Timestamp time.Time
	}

	// React is the orchestrator's bookkeeping for its ReAct loop.
	React struct {
		Step         int
		MaxSteps     int
		Observations []Observation
		DecisionLog  []DecisionLogEntry
	}

	// TimelineEventKind distinguishes scheduled node visits from waits and
	// the lunch anchor.
	TimelineEventKind string

	// TimelineEvent is one entry of the produced day schedule.
	TimelineEvent struct {
		Kind      TimelineEventKind
		NodeID    string
		Day       int
		Start     string
		End       string
		WaitMin   int
	}

	// Result is the terminal (or in-progress) outcome of the request.
	Result struct {
		Status       Status
		Timeline     []TimelineEvent
		DroppedItems []string
		Explanations []string
	}

	// Observability carries cost/latency/usage counters surfaced to callers.
	Observability struct {
		RouterMs     int64
		LatencyMs    int64
		ToolCalls    int
		BrowserSteps int
		CostEstUSD   float64
		FallbackUsed bool
	}

	// AgentState is the full per-request working memory. Only the Orchestrator
	// and the fast executor mutate it, and only via copy-on-write helpers;
	// every mutation returns a new value rather than editing in place.
	AgentState struct {
		RequestID     string
		UserInput     string
		Trip          Trip
		Draft         Draft
		Memory        Memory
		Compute       Compute
		React         React
		Result        Result
		Observability Observability
	}
)

const (
	StatusDraft        Status = "DRAFT"
	StatusReady        Status = "READY"
	StatusNeedMoreInfo Status = "NEED_MORE_INFO"
	StatusNeedConsent  Status = "NEED_CONSENT"
	StatusFailed       Status = "FAILED"
	StatusTimeout      Status = "TIMEOUT"

	PacingRelaxed Pacing = "relaxed"
	PacingNormal  Pacing = "normal"
	PacingTight   Pacing = "tight"

	TimelineNode  TimelineEventKind = "NODE"
	TimelineWait  TimelineEventKind = "WAIT"
	TimelineLunch TimelineEventKind = "LUNCH"
)

// Terminal reports whether status is one of the three statuses invariant 1
// forbids further mutation past (READY, FAILED, TIMEOUT).
func (s Status) Terminal() bool {
	switch s {
	case StatusReady, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// Options configures the initial AgentState produced by Store.Create.
type Options struct {
	TripID string
}

// defaultTrip builds the spec-mandated defaults: one day, boundary
// 10:00-22:00, 60 minute lunch enabled in window 11:30-13:30, normal pacing.
func defaultTrip(tripID string) Trip {
	return Trip{
		TripID:        tripID,
		Days:          1,
		DayBoundaries: []TimeWindow{{Start: "10:00", End: "22:00"}},
		LunchBreak: LunchBreak{
			Enabled:     true,
			DurationMin: 60,
			Window:      TimeWindow{Start: "11:30", End: "13:30"},
		},
		Pacing: PacingNormal,
	}
}

// New constructs a fresh AgentState with spec-mandated defaults:
// days=1, one boundary 10:00-22:00, lunch enabled 60min in 11:30-13:30,
// pacing normal, max_steps=8, status=DRAFT.
func New(requestID, userInput string, opts Options) AgentState {
	return AgentState{
		RequestID: requestID,
		UserInput: userInput,
		Trip:      defaultTrip(opts.TripID),
		React:     React{MaxSteps: 8},
		Result:    Result{Status: StatusDraft},
	}
}

// Clone returns a deep-enough copy of s so that mutating the returned value's
// slices/maps never aliases the original. This is the copy-on-write base
// every state.Store update builds on.
func (s AgentState) Clone() AgentState {
	c := s
	c.Trip.DayBoundaries = append([]TimeWindow(nil), s.Trip.DayBoundaries...)
	c.Draft.Nodes = append([]Node(nil), s.Draft.Nodes...)
	c.Draft.HardNodes = append([]Node(nil), s.Draft.HardNodes...)
	c.Draft.SoftNodes = append([]Node(nil), s.Draft.SoftNodes...)
	c.Draft.Edits = append([]Edit(nil), s.Draft.Edits...)
	c.Memory.EpisodicSnippets = append([]string(nil), s.Memory.EpisodicSnippets...)
	c.Memory.SemanticFacts.Rules = append([]string(nil), s.Memory.SemanticFacts.Rules...)
	if s.Memory.SemanticFacts.POIs != nil {
		pois := make(map[string]PlaceFacts, len(s.Memory.SemanticFacts.POIs))
		for k, v := range s.Memory.SemanticFacts.POIs {
			pois[k] = v
		}
		c.Memory.SemanticFacts.POIs = pois
	}
	if s.Memory.UserProfile != nil {
		profile := make(map[string]any, len(s.Memory.UserProfile))
		for k, v := range s.Memory.UserProfile {
			profile[k] = v
		}
		c.Memory.UserProfile = profile
	}
	c.Compute.Clusters = append([]string(nil), s.Compute.Clusters...)
	c.Compute.OptimizationResults = append([]OptimizationResult(nil), s.Compute.OptimizationResults...)
	c.React.Observations = append([]Observation(nil), s.React.Observations...)
	c.React.DecisionLog = append([]DecisionLogEntry(nil), s.React.DecisionLog...)
	c.Result.Timeline = append([]TimelineEvent(nil), s.Result.Timeline...)
	c.Result.DroppedItems = append([]string(nil), s.Result.DroppedItems...)
	c.Result.Explanations = append([]string(nil), s.Result.Explanations...)
	return c
}
