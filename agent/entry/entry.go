// Package entry implements Agent Entry (spec §4.9): it creates the initial
// state, invokes the Router, dispatches to the System 1 fast executor or the
// System 2 Orchestrator, maps the terminal AgentState to a response
// envelope, and records request dedup and completion telemetry.
package entry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"travelagent/agent/cache"
	"travelagent/agent/critic"
	"travelagent/agent/dedup"
	"travelagent/agent/journal"
	"travelagent/agent/orchestrator"
	"travelagent/agent/planner"
	"travelagent/agent/registry"
	"travelagent/agent/router"
	"travelagent/agent/state"
	"travelagent/agent/telemetry"
)

type (
	// ConversationContext carries caller-provided conversational hints.
	ConversationContext struct {
		RecentMessages []string
		Locale         string
		Timezone       string
	}

	// Options tunes one request's execution, overriding router-derived
	// budget defaults when non-zero.
	Options struct {
		DryRun          bool
		AllowWebbrowse  bool
		MaxSeconds      int
		MaxSteps        int
		MaxBrowserSteps int
		CostBudgetUSD   float64
	}

	// Request is the request envelope spec §6 produces for Agent Entry.
	Request struct {
		RequestID           string
		UserID               string
		TripID               string
		Message              string
		ConversationContext ConversationContext
		Options              Options
	}

	// ResultEnvelope is the `result` field of the response envelope.
	ResultEnvelope struct {
		Status     string
		AnswerText string
		Payload    map[string]any
	}

	// Explain carries the decision trail for audit/debug surfaces.
	Explain struct {
		DecisionLog []state.DecisionLogEntry
	}

	// ObservabilityEnvelope is the `observability` field of the response.
	ObservabilityEnvelope struct {
		LatencyMs    int64
		RouterMs     int64
		SystemMode   string
		ToolCalls    int
		BrowserSteps int
		TokensEst    int
		CostEstUSD   float64
		FallbackUsed bool
	}

	// Response is the response envelope spec §4.9 produces.
	Response struct {
		RequestID string
		Route     string
		Result    ResultEnvelope
		Explain   Explain
		Observability ObservabilityEnvelope
	}

	// FastResult is what the externally-provided fast executor returns for a
	// SYSTEM1_API/SYSTEM1_RAG route.
	FastResult struct {
		Success    bool
		Result     map[string]any
		AnswerText string
	}

	// FastExecutor is the System 1 collaborator: the core only maps its
	// success to READY and failure to NEED_MORE_INFO, per spec §4.9.
	FastExecutor interface {
		Execute(ctx context.Context, req Request, st state.AgentState, route router.Output) (FastResult, error)
	}
)

// Entry wires the Router, the System 2 Orchestrator's ingredients, a System 1
// FastExecutor, Request Dedup, and the Event Journal behind one RouteAndRun
// call. The Orchestrator itself is constructed fresh per request so each
// request's budget (from its Router output, adjusted by Options) becomes
// that Orchestrator's Guards without any shared mutable state.
type Entry struct {
	Store state.Store
	Router *router.Router
	Fast   FastExecutor
	Dedup  dedup.Dedup
	Journal journal.Journal

	Planner  planner.Planner
	Registry *registry.Registry
	Preds    registry.PreconditionChecker
	Cache    cache.Cache
	Policy   critic.Policy

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer

	mu        sync.Mutex
	responses map[string]Response
}

// New constructs an Entry. Fast may be nil (SYSTEM1 routes then always map
// to NEED_MORE_INFO, matching "no fast executor configured" as a
// conservative default rather than a panic).
func New(e Entry) *Entry {
	e.responses = make(map[string]Response)
	if e.Logger == nil {
		e.Logger = telemetry.NewNoopLogger()
	}
	if e.Metrics == nil {
		e.Metrics = telemetry.NewNoopMetrics()
	}
	if e.Tracer == nil {
		e.Tracer = telemetry.NewNoopTracer()
	}
	if e.Journal == nil {
		e.Journal = journal.NewMemJournal()
	}
	if e.Dedup == nil {
		e.Dedup = dedup.NewMemDedup(0)
	}
	return &e
}

// RouteAndRun implements spec §4.9: dedup lookup, state creation, routing,
// webbrowse-consent downgrade, System1/System2 dispatch, response envelope
// construction, response caching, and completion telemetry.
func (e *Entry) RouteAndRun(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	var dedupKey string
	if !req.Options.DryRun {
		dedupKey = composeDedupKey(req)
		if originalID, seen := e.Dedup.SeenOrRecord(ctx, req.UserID, dedupKey, req.RequestID); seen {
			if cached, ok := e.cachedResponse(originalID); ok {
				resp := cached
				resp.RequestID = req.RequestID
				resp.Observability.LatencyMs = time.Since(start).Milliseconds()
				return resp, nil
			}
		}
	}

	st, err := e.Store.Create(ctx, req.Message, state.Options{TripID: req.TripID})
	if err != nil {
		return Response{}, fmt.Errorf("entry: create state: %w", err)
	}
	st.RequestID = req.RequestID

	routerStart := time.Now()
	routeOut := e.Router.Route(ctx, req.Message, router.Context{Locale: req.ConversationContext.Locale})
	routerMs := time.Since(routerStart).Milliseconds()
	e.Journal.Append(ctx, journal.Record{
		Type: journal.EventRouterDecision, RequestID: req.RequestID,
		Data: map[string]any{"route": string(routeOut.Route), "confidence": routeOut.Confidence},
	})

	fallbackUsed := false
	if routeOut.Route == router.RouteSystem2WebBrowse && !req.Options.AllowWebbrowse {
		routeOut.Route = router.RouteSystem2Reasoning
		routeOut.Confidence = 0.7
		routeOut.Reasons = []router.Reason{router.ReasonNoAPI}
		routeOut.ConsentRequired = false
		fallbackUsed = true
		e.Journal.Append(ctx, journal.Record{Type: journal.EventWebbrowseBlocked, RequestID: req.RequestID})
		e.Journal.Append(ctx, journal.Record{Type: journal.EventFallbackTriggered, RequestID: req.RequestID})
	}

	budget := applyOptionsOverride(routeOut.Budget, req.Options)

	var final state.AgentState
	var answerText string
	var payload map[string]any
	var criticRes *critic.Result

	switch routeOut.Route {
	case router.RouteSystem1API, router.RouteSystem1RAG:
		final = st
		if e.Fast == nil {
			final.Result.Status = state.StatusNeedMoreInfo
		} else {
			fr, ferr := e.Fast.Execute(ctx, req, st, routeOut)
			if ferr != nil || !fr.Success {
				final.Result.Status = state.StatusNeedMoreInfo
			} else {
				final.Result.Status = state.StatusReady
				answerText = fr.AnswerText
				payload = fr.Result
			}
		}
	default:
		st.React.MaxSteps = budget.MaxSteps
		if routeOut.ConsentRequired {
			final = st
			final.Result.Status = state.StatusNeedConsent
			break
		}
		orch := orchestrator.New(e.Planner, e.Registry, e.Preds, e.Cache,
			orchestrator.Guards{MaxIterations: budget.MaxSteps, MaxDuration: time.Duration(budget.MaxSeconds) * time.Second},
			e.Policy, e.Logger, e.Metrics, e.Tracer)
		outcome, _ := orch.Run(ctx, st)
		final = outcome.State
		answerText = outcome.FinalMessage
		criticRes = outcome.CriticResult
		e.Journal.Append(ctx, journal.Record{
			Type: journal.EventSystem2Step, RequestID: req.RequestID,
			Data: map[string]any{"iterations": outcome.Iterations},
		})
		if criticRes != nil {
			e.Journal.Append(ctx, journal.Record{
				Type: journal.EventCriticResult, RequestID: req.RequestID,
				Data: map[string]any{"pass": criticRes.Pass},
			})
		}
	}

	if answerText == "" {
		answerText = synthesizeAnswer(final)
	}

	resp := Response{
		RequestID: req.RequestID,
		Route:     string(routeOut.Route),
		Result: ResultEnvelope{
			Status:     string(mapStatus(final.Result.Status)),
			AnswerText: answerText,
			Payload:    payload,
		},
		Explain: Explain{DecisionLog: final.React.DecisionLog},
		Observability: ObservabilityEnvelope{
			LatencyMs:    time.Since(start).Milliseconds(),
			RouterMs:     routerMs,
			SystemMode:   systemMode(routeOut.Route),
			ToolCalls:    final.Observability.ToolCalls,
			BrowserSteps: final.Observability.BrowserSteps,
			CostEstUSD:   final.Observability.CostEstUSD,
			FallbackUsed: fallbackUsed || final.Observability.FallbackUsed,
		},
	}

	if dedupKey != "" {
		e.cacheResponse(req.RequestID, resp)
	}
	e.Journal.Append(ctx, journal.Record{
		Type: journal.EventAgentComplete, RequestID: req.RequestID,
		Data: map[string]any{"status": resp.Result.Status},
	})
	return resp, nil
}

// responseStatus is the coarse status surfaced on the response envelope.
type responseStatus string

const (
	statusOK           responseStatus = "OK"
	statusNeedMoreInfo responseStatus = "NEED_MORE_INFO"
	statusNeedConsent  responseStatus = "NEED_CONSENT"
	statusFailed       responseStatus = "FAILED"
	statusTimeout      responseStatus = "TIMEOUT"
)

// mapStatus implements spec §4.9's AgentState.status -> response status
// table: READY->OK, DRAFT->NEED_MORE_INFO, NEED_MORE_INFO->NEED_MORE_INFO,
// NEED_CONSENT->NEED_CONSENT, FAILED->FAILED, TIMEOUT->TIMEOUT.
func mapStatus(s state.Status) responseStatus {
	switch s {
	case state.StatusReady:
		return statusOK
	case state.StatusNeedConsent:
		return statusNeedConsent
	case state.StatusFailed:
		return statusFailed
	case state.StatusTimeout:
		return statusTimeout
	default:
		return statusNeedMoreInfo
	}
}

func systemMode(r router.Route) string {
	if r == router.RouteSystem1API || r == router.RouteSystem1RAG {
		return "SYSTEM1"
	}
	return "SYSTEM2"
}

// applyOptionsOverride lets a caller-supplied budget tighten (or loosen) the
// router-derived default, used when a caller knows its own deadline.
func applyOptionsOverride(b router.Budget, opts Options) router.Budget {
	if opts.MaxSeconds > 0 {
		b.MaxSeconds = opts.MaxSeconds
	}
	if opts.MaxSteps > 0 {
		b.MaxSteps = opts.MaxSteps
	}
	if opts.MaxBrowserSteps > 0 {
		b.MaxBrowserSteps = opts.MaxBrowserSteps
	}
	return b
}

// synthesizeAnswer implements spec §7's user-visible answer synthesis rules.
func synthesizeAnswer(st state.AgentState) string {
	switch st.Result.Status {
	case state.StatusReady:
		n := len(st.Result.Timeline)
		if n > 0 {
			return fmt.Sprintf("已为您规划好行程，包含 %d 个节点", n)
		}
		return "已为您处理完成"
	case state.StatusNeedMoreInfo:
		if len(st.Result.Explanations) > 0 {
			return st.Result.Explanations[len(st.Result.Explanations)-1]
		}
		return "请补充出行日期或城市信息，以便继续规划"
	case state.StatusNeedConsent:
		return "该操作涉及真实世界变更，需要您的确认才能继续"
	case state.StatusFailed:
		return "抱歉，未能完成您的请求，请稍后再试或换一种说法"
	case state.StatusTimeout:
		return "处理超时，请重试一次"
	default:
		return "正在为您处理"
	}
}

// composeDedupKey renders the fields scenario S7 requires two requests to
// share for dedup to fold them together: message, trip id, the dry_run/
// allow_webbrowse flags, and the last 3 recent messages.
func composeDedupKey(req Request) string {
	recent := req.ConversationContext.RecentMessages
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	return fmt.Sprintf("%s\x00%s\x00%t\x00%t\x00%v", req.Message, req.TripID, req.Options.DryRun, req.Options.AllowWebbrowse, recent)
}

func (e *Entry) cachedResponse(requestID string) (Response, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.responses[requestID]
	return r, ok
}

func (e *Entry) cacheResponse(requestID string, resp Response) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[requestID] = resp
}
