package entry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/agent/actions"
	"travelagent/agent/cache"
	"travelagent/agent/config"
	"travelagent/agent/critic"
	"travelagent/agent/dedup"
	"travelagent/agent/journal"
	"travelagent/agent/planner"
	"travelagent/agent/registry"
	"travelagent/agent/router"
	"travelagent/agent/state"
)

func idGen() func() string {
	n := 0
	return func() string {
		n++
		return "auto-" + string(rune('a'+n))
	}
}

func newTestEntry(t *testing.T, fast FastExecutor) *Entry {
	t.Helper()
	reg := registry.New(nil)
	require.NoError(t, actions.RegisterDefaults(reg))
	j := journal.NewMemJournal()
	return New(Entry{
		Store:    state.NewMemStore(idGen()),
		Router:   router.New(config.DefaultRouterConfig(), nil, nil),
		Fast:     fast,
		Dedup:    dedup.NewMemDedup(0),
		Journal:  j,
		Planner:  planner.NewRule(),
		Registry: reg,
		Preds:    registry.DefaultPreconditions{},
		Cache:    cache.NewMemCache(cache.DefaultCapacity),
		Policy:   critic.DefaultPolicy(),
	})
}

type stubFast struct {
	result FastResult
	err    error
}

func (s stubFast) Execute(_ context.Context, _ Request, _ state.AgentState, _ router.Output) (FastResult, error) {
	return s.result, s.err
}

func TestRouteAndRun_System2ReasoningDrivesToReady(t *testing.T) {
	t.Parallel()

	e := newTestEntry(t, nil)
	resp, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-1", UserID: "user-1", Message: "帮我规划故宫一日游",
		Options: Options{AllowWebbrowse: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "SYSTEM2", resp.Observability.SystemMode)
	assert.Equal(t, "OK", resp.Result.Status)
	assert.NotEmpty(t, resp.Result.AnswerText)
}

func TestRouteAndRun_FastPathSuccessMapsToOK(t *testing.T) {
	t.Parallel()

	fast := stubFast{result: FastResult{Success: true, AnswerText: "故宫营业时间 08:30-17:00"}}
	e := newTestEntry(t, fast)

	resp, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-1", UserID: "user-1", Message: "故宫营业时间",
	})
	require.NoError(t, err)

	assert.Equal(t, "SYSTEM1", resp.Observability.SystemMode)
	assert.Equal(t, "OK", resp.Result.Status)
	assert.Equal(t, "故宫营业时间 08:30-17:00", resp.Result.AnswerText)
}

func TestRouteAndRun_FastPathFailureMapsToNeedMoreInfo(t *testing.T) {
	t.Parallel()

	fast := stubFast{result: FastResult{Success: false}}
	e := newTestEntry(t, fast)

	resp, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-1", UserID: "user-1", Message: "故宫营业时间",
	})
	require.NoError(t, err)
	assert.Equal(t, "NEED_MORE_INFO", resp.Result.Status)
}

func TestRouteAndRun_NoFastExecutorConfiguredMapsToNeedMoreInfo(t *testing.T) {
	t.Parallel()

	e := newTestEntry(t, nil)
	resp, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-1", UserID: "user-1", Message: "故宫营业时间",
	})
	require.NoError(t, err)
	assert.Equal(t, "NEED_MORE_INFO", resp.Result.Status)
}

func TestRouteAndRun_WebbrowseRouteWithoutConsentFallsBackAndFlagsFallback(t *testing.T) {
	t.Parallel()

	e := newTestEntry(t, nil)
	resp, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-1", UserID: "user-1", Message: "现在官网上故宫还有房吗",
		Options: Options{AllowWebbrowse: false},
	})
	require.NoError(t, err)

	assert.Equal(t, "SYSTEM2_REASONING", resp.Route)
	assert.True(t, resp.Observability.FallbackUsed)
}

func TestRouteAndRun_HighRiskRouteRequiresConsent(t *testing.T) {
	t.Parallel()

	e := newTestEntry(t, nil)
	resp, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-1", UserID: "user-1", Message: "帮我支付这个订单",
	})
	require.NoError(t, err)
	assert.Equal(t, "NEED_CONSENT", resp.Result.Status)
}

func TestRouteAndRun_DuplicateRequestWithinWindowReturnsCachedResponse(t *testing.T) {
	t.Parallel()

	e := newTestEntry(t, nil)
	first, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-1", UserID: "user-1", Message: "帮我规划故宫一日游",
		Options: Options{AllowWebbrowse: true},
	})
	require.NoError(t, err)

	second, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-2", UserID: "user-1", Message: "帮我规划故宫一日游",
		Options: Options{AllowWebbrowse: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "req-2", second.RequestID)
	assert.Equal(t, first.Result, second.Result)
}

func TestRouteAndRun_DryRunBypassesDedup(t *testing.T) {
	t.Parallel()

	e := newTestEntry(t, nil)
	_, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-1", UserID: "user-1", Message: "帮我规划故宫一日游",
		Options: Options{AllowWebbrowse: true, DryRun: true},
	})
	require.NoError(t, err)

	// A second dry-run request with identical content is not deduped; it
	// runs fresh rather than returning a cached response, since dry runs
	// never record a dedup key.
	second, err := e.RouteAndRun(context.Background(), Request{
		RequestID: "req-2", UserID: "user-1", Message: "帮我规划故宫一日游",
		Options: Options{AllowWebbrowse: true, DryRun: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-2", second.RequestID)
}
