// Package registry is the Action Registry: a flat name-to-record catalog of
// named actions with input/output schemas, preconditions, side-effect and
// cache metadata, and an opaque execute handle. Action-family behavior lives
// in pure functions keyed by name prefix elsewhere (the orchestrator's merge
// step); the registry itself never branches on name beyond lookup.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"travelagent/agent/state"
	"travelagent/agent/telemetry"
)

type (
	// Cost is a coarse execution cost bucket used by the planner and policy.
	Cost string

	// SideEffect classifies whether an action mutates external systems.
	SideEffect string

	// Metadata describes an action's execution characteristics.
	Metadata struct {
		// Kind is a free-form action family label (e.g. "resolver", "optimizer").
		Kind string
		// Cost is a coarse cost estimate used by planners and policy.
		Cost Cost
		// SideEffect classifies the action's external effect.
		SideEffect SideEffect
		// Preconditions is an opaque list of capability tokens interpreted by
		// the implementer against state (e.g. "nodes_resolved"). The registry
		// and orchestrator never assign semantics to these strings themselves.
		Preconditions []string
		// Idempotent marks whether repeated calls with the same input are safe.
		Idempotent bool
		// Cacheable marks whether results may be memoized in the Action Cache.
		Cacheable bool
		// CacheKey is an optional custom cache-key template with `{field}`
		// placeholders substituted from the action input.
		CacheKey string
	}

	// ExecuteFunc is the opaque execute handle an action exposes. The
	// orchestrator does not propagate a returned error out of its loop, per
	// the error propagation policy; a panic inside Execute is not recovered.
	ExecuteFunc func(ctx context.Context, input map[string]any, st state.AgentState) (map[string]any, error)

	// Action is a named external capability with declared preconditions,
	// side effects, and idempotence.
	Action struct {
		Name         string
		Description  string
		InputSchema  json.RawMessage
		OutputSchema json.RawMessage
		Metadata     Metadata
		Execute      ExecuteFunc

		compiledInput *jsonschema.Schema
	}
)

const (
	CostLow  Cost = "low"
	CostMed  Cost = "med"
	CostHigh Cost = "high"

	SideEffectNone       SideEffect = "none"
	SideEffectReads      SideEffect = "reads"
	SideEffectWritesDB   SideEffect = "writes_db"
	SideEffectCallsAPI   SideEffect = "calls_api"
)

// Registry stores actions by name and exposes lookup, listing, and
// precondition checks. A missing action or failed precondition must never
// crash the loop: Registry logs and returns a signal the caller can act on.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]*Action
	logger  telemetry.Logger
}

// New constructs an empty Registry. A nil logger defaults to a no-op logger.
func New(logger telemetry.Logger) *Registry {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Registry{actions: make(map[string]*Action), logger: logger}
}

// Register compiles the action's input schema (if present) and adds it to the
// catalog. Registration fails fast on an invalid input schema document rather
// than deferring the failure to the first execute call. OutputSchema is
// stored as given and is not compiled or checked.
func (r *Registry) Register(a Action) error {
	if a.Name == "" {
		return fmt.Errorf("registry: action name is required")
	}
	if a.Execute == nil {
		return fmt.Errorf("registry: action %q has no execute handle", a.Name)
	}
	if len(a.InputSchema) > 0 {
		schema, err := compileSchema(a.Name, a.InputSchema)
		if err != nil {
			return fmt.Errorf("registry: action %q input schema: %w", a.Name, err)
		}
		a.compiledInput = schema
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.actions == nil {
		r.actions = make(map[string]*Action)
	}
	cp := a
	r.actions[a.Name] = &cp
	return nil
}

// Get returns the action registered under name, or false if absent.
func (r *Registry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return Action{}, false
	}
	return *a, true
}

// List returns all registered actions in no particular order.
func (r *Registry) List() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Action, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, *a)
	}
	return out
}

// CheckPreconditions reports whether every precondition token declared by
// name's metadata is satisfied against st. preds interprets the opaque
// tokens. An unknown action fails closed (false, logged at Warn); a nil preds
// or an empty token list passes (true); a failed token returns false and is
// logged at Debug. It logs instead of erroring so the Plan step can select
// something else.
func (r *Registry) CheckPreconditions(ctx context.Context, name string, st state.AgentState, preds PreconditionChecker) bool {
	a, ok := r.Get(name)
	if !ok {
		r.logger.Warn(ctx, "registry: unknown action", "action", name)
		return false
	}
	if preds == nil || len(a.Metadata.Preconditions) == 0 {
		return true
	}
	for _, tok := range a.Metadata.Preconditions {
		if !preds.Check(tok, st) {
			r.logger.Debug(ctx, "registry: precondition failed", "action", name, "precondition", tok)
			return false
		}
	}
	return true
}

// ValidateInput validates input against the action's compiled input schema,
// when one was supplied at registration time. Actions without a schema
// always validate.
func (r *Registry) ValidateInput(name string, input map[string]any) error {
	a, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("registry: unknown action %q", name)
	}
	if a.compiledInput == nil {
		return nil
	}
	return a.compiledInput.Validate(input)
}

// PreconditionChecker interprets opaque precondition tokens against state.
// The registry delegates all semantics to the implementer, per spec's open
// question on precondition meaning.
type PreconditionChecker interface {
	Check(token string, st state.AgentState) bool
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
