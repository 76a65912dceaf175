// Package router classifies a free-form utterance and emits an execution
// envelope: the route, confidence, required capabilities, consent flag,
// budget, and UI hint. Routing runs in two stages: hard-rule short-circuit,
// then feature-scored classification.
package router

import (
	"context"
	"regexp"
	"sync"

	"travelagent/agent/config"
	"travelagent/agent/telemetry"
)

type (
	// Route names the downstream execution path.
	Route string

	// Reason names why a route was chosen, for explain surfaces.
	Reason string

	// Budget bounds the downstream executor's resource consumption.
	Budget struct {
		MaxSeconds      int
		MaxSteps        int
		MaxBrowserSteps int
	}

	// UIHint tells the caller how to render the in-flight request.
	UIHint struct {
		Mode    string
		Status  string
		Message string
	}

	// Output is the full execution envelope the Router emits.
	Output struct {
		Route                Route
		Confidence            float64
		Reasons                []Reason
		RequiredCapabilities   []string
		ConsentRequired        bool
		Budget                 Budget
		UIHint                 UIHint
	}

	// Context carries caller-provided routing hints (currently unused by the
	// reference implementation but kept so callers have a stable extension
	// point, e.g. locale-specific trigger tables).
	Context struct {
		Locale string
	}
)

const (
	RouteSystem1API       Route = "SYSTEM1_API"
	RouteSystem1RAG       Route = "SYSTEM1_RAG"
	RouteSystem2Reasoning Route = "SYSTEM2_REASONING"
	RouteSystem2WebBrowse Route = "SYSTEM2_WEBBROWSE"

	ReasonMultiConstraint Reason = "MULTI_CONSTRAINT"
	ReasonMissingInfo     Reason = "MISSING_INFO"
	ReasonNoAPI           Reason = "NO_API"
	ReasonRealtimeWeb     Reason = "REALTIME_WEB"
	ReasonHighRiskAction  Reason = "HIGH_RISK_ACTION"

	minConfidence = 0.1
	maxConfidence = 0.95
)

// constraintPattern matches the Chinese constraint-conjunction cues named in
// spec §4.7 ("既要/又要/不要/避免/…").
var constraintPattern = regexp.MustCompile(`(?i)既要|又要|不要|避免|必须`)

// ambiguityPattern matches pronoun/question-mark ambiguity cues.
var ambiguityPattern = regexp.MustCompile(`[？?]|这个|那个|随便`)

// realtimePattern matches realtime-web cues independent of the hard-rule
// webbrowse table (the feature stage still boosts toward webbrowse even when
// no hard rule matched).
var realtimePattern = regexp.MustCompile(`(?i)现在|实时|官网|最新`)

// planningPattern matches multi-day/conditional planning cues
// ("规划/几天/如果…就…").
var planningPattern = regexp.MustCompile(`(?i)规划|几天|如果.*就`)

// Router implements spec §4.7's two-stage classification.
type Router struct {
	mu      sync.RWMutex
	cfg     config.RouterConfig
	rules   []compiledRule
	logger  telemetry.Logger
	metrics telemetry.Metrics
}

type compiledRule struct {
	rule     config.RouterRule
	patterns []*regexp.Regexp
}

// New constructs a Router from cfg. A zero-value cfg.HardRules falls back to
// config.DefaultRouterConfig(); malformed regex patterns are skipped (logged
// at Warn) rather than failing construction, so one bad rule in an operator
// YAML edit never takes routing down entirely.
func New(cfg config.RouterConfig, logger telemetry.Logger, metrics telemetry.Metrics) *Router {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if len(cfg.HardRules) == 0 {
		cfg = config.DefaultRouterConfig()
	}
	r := &Router{cfg: cfg, logger: logger, metrics: metrics}
	for _, rule := range cfg.HardRules {
		cr := compiledRule{rule: rule}
		for _, p := range rule.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				logger.Warn(context.Background(), "router: skipping invalid hard rule pattern", "rule", rule.Name, "pattern", p, "error", err.Error())
				continue
			}
			cr.patterns = append(cr.patterns, re)
		}
		r.rules = append(r.rules, cr)
	}
	return r
}

// Route classifies input and returns the execution envelope. Unexpected
// internal errors (e.g. a panic recovered from a malformed rule) fall back to
// a safe SYSTEM1_API envelope with confidence 0.3 and reason MISSING_INFO,
// per spec §4.7's error-handling clause.
func (r *Router) Route(ctx context.Context, input string, _ Context) (out Output) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(ctx, "router: recovered from panic", "panic", rec)
			out = safeFallback()
		}
	}()

	r.mu.RLock()
	defer r.mu.RUnlock()

	if hard, ok := r.hardRule(input); ok {
		r.metrics.IncCounter("router.hard_rule_hit", 1, "rule", hard.rule.Name)
		return hardRuleOutput(hard.rule)
	}

	return r.featureScore(input)
}

// qualifiedByAbsenceOfPlanning names the hard rules spec §4.7 qualifies with
// "without planning cues" — crud_verbs and factual_lookup only fire when the
// utterance carries no multi-day/conditional planning cue, so a mixed
// request like "帮我规划一下行程，然后删除第二天的酒店" falls through to
// feature scoring instead of short-circuiting to a single-step System 1
// route. The payment and webbrowse rules carry no such qualifier in spec.
var qualifiedByAbsenceOfPlanning = map[string]bool{
	"crud_verbs":     true,
	"factual_lookup": true,
}

func (r *Router) hardRule(input string) (compiledRule, bool) {
	hasPlanning := planningPattern.MatchString(input)
	for _, cr := range r.rules {
		if qualifiedByAbsenceOfPlanning[cr.rule.Name] && hasPlanning {
			continue
		}
		for _, p := range cr.patterns {
			if p.MatchString(input) {
				return cr, true
			}
		}
	}
	return compiledRule{}, false
}

func hardRuleOutput(rule config.RouterRule) Output {
	reasons := make([]Reason, len(rule.Reasons))
	for i, s := range rule.Reasons {
		reasons[i] = Reason(s)
	}
	route := Route(rule.Route)
	return Output{
		Route:                route,
		Confidence:           rule.Confidence,
		Reasons:              reasons,
		RequiredCapabilities: requiredCapabilities(route, reasons),
		ConsentRequired:      rule.ConsentRequired,
		Budget: Budget{
			MaxSeconds:      rule.MaxSeconds,
			MaxSteps:        rule.MaxSteps,
			MaxBrowserSteps: rule.MaxBrowserSteps,
		},
		UIHint: uiHint(route),
	}
}

// featureScore implements spec §4.7 stage (b): start at 0.5, add/subtract
// weighted boosts for constraint count, planning cues, realtime cues, and
// ambiguity, clamp to [0.1, 0.95], then downgrade low-confidence results to
// a System 1 route.
func (r *Router) featureScore(input string) Output {
	w := r.cfg.Features
	confidence := w.Base

	constraintCount := len(constraintPattern.FindAllString(input, -1))
	hasPlanning := planningPattern.MatchString(input)
	hasRealtime := realtimePattern.MatchString(input)
	highAmbiguity := len(ambiguityPattern.FindAllString(input, -1)) >= 2

	var reasons []Reason
	route := RouteSystem2Reasoning

	if constraintCount >= 2 {
		confidence += w.ConstraintBoost
		reasons = append(reasons, ReasonMultiConstraint)
	}
	if hasPlanning {
		confidence += w.PlanningBoost
	}
	if hasRealtime {
		confidence += w.RealtimeBoost
		reasons = append(reasons, ReasonRealtimeWeb)
		route = RouteSystem2WebBrowse
	}
	if highAmbiguity {
		confidence -= w.AmbiguityPenalty
	}

	confidence = clamp(confidence, minConfidence, maxConfidence)

	consentRequired := route == RouteSystem2WebBrowse || hasRealtime

	if confidence < w.DowngradeBelow {
		if hasPlanning {
			route = RouteSystem1RAG
		} else {
			route = RouteSystem1API
		}
		consentRequired = false
		reasons = nil
	}

	return Output{
		Route:                route,
		Confidence:           confidence,
		Reasons:              reasons,
		RequiredCapabilities: requiredCapabilities(route, reasons),
		ConsentRequired:      consentRequired,
		Budget:               budgetFor(route),
		UIHint:               uiHint(route),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func budgetFor(route Route) Budget {
	switch route {
	case RouteSystem2Reasoning:
		return Budget{MaxSeconds: 60, MaxSteps: 8, MaxBrowserSteps: 0}
	case RouteSystem2WebBrowse:
		return Budget{MaxSeconds: 60, MaxSteps: 8, MaxBrowserSteps: 12}
	case RouteSystem1API:
		return Budget{MaxSeconds: 3, MaxSteps: 1, MaxBrowserSteps: 0}
	default:
		return Budget{MaxSeconds: 10, MaxSteps: 2, MaxBrowserSteps: 0}
	}
}

func requiredCapabilities(route Route, reasons []Reason) []string {
	var caps []string
	switch route {
	case RouteSystem1RAG:
		caps = append(caps, "places")
	case RouteSystem2Reasoning:
		caps = append(caps, "places", "transport", "planner")
	case RouteSystem2WebBrowse:
		caps = append(caps, "browser")
	}
	return caps
}

func uiHint(route Route) UIHint {
	switch route {
	case RouteSystem1API, RouteSystem1RAG:
		return UIHint{Mode: "fast", Status: "processing", Message: "正在处理您的请求"}
	default:
		return UIHint{Mode: "slow", Status: "planning", Message: "正在为您规划行程"}
	}
}

func safeFallback() Output {
	return Output{
		Route:                RouteSystem1API,
		Confidence:           0.3,
		Reasons:              []Reason{ReasonMissingInfo},
		RequiredCapabilities: nil,
		ConsentRequired:      false,
		Budget:               budgetFor(RouteSystem1API),
		UIHint:               uiHint(RouteSystem1API),
	}
}

