package coordinator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/coordinator"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	"github.com/amrherek/OJO-DynamicDiscount/internal/processing"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memGuard struct {
	mu     sync.Mutex
	owner  string
	claims int
}

func (g *memGuard) Claim(_ context.Context, owner string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.claims++
	if g.owner != "" {
		return false, nil
	}
	g.owner = owner
	return true, nil
}

func (g *memGuard) ActiveOwner(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner, nil
}

func (g *memGuard) Release(_ context.Context, owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner != owner {
		return errors.New("not owner")
	}
	g.owner = ""
	return nil
}

type fakeRegistrar struct {
	ongoing      *requestdomain.Request
	byID         map[int64]requestdomain.Request
	cutoff       time.Time
	cutoffErr    error
	registration requestdomain.Registration
	resetCount   int
	finalStatus  requestdomain.RequestStatus

	registered []string
	resets     []int64
	finalized  []int64
}

func (f *fakeRegistrar) FetchOngoing(context.Context) (*requestdomain.Request, error) {
	return f.ongoing, nil
}

func (f *fakeRegistrar) FetchByID(_ context.Context, id int64) (*requestdomain.Request, error) {
	req, ok := f.byID[id]
	if !ok {
		return nil, requestdomain.ErrRequestNotFound
	}
	return &req, nil
}

func (f *fakeRegistrar) FetchCutoffDate(context.Context, string) (time.Time, error) {
	return f.cutoff, f.cutoffErr
}

func (f *fakeRegistrar) RegisterNew(_ context.Context, billCycle string, _ time.Time) (*requestdomain.Registration, error) {
	f.registered = append(f.registered, billCycle)
	reg := f.registration
	return &reg, nil
}

func (f *fakeRegistrar) ResetFailed(_ context.Context, id int64) (int, error) {
	f.resets = append(f.resets, id)
	return f.resetCount, nil
}

func (f *fakeRegistrar) Finalize(_ context.Context, id int64) (requestdomain.RequestStatus, error) {
	f.finalized = append(f.finalized, id)
	return f.finalStatus, nil
}

type fakeCache struct {
	refreshes int
}

func (c *fakeCache) Refresh(context.Context) error {
	c.refreshes++
	return nil
}

func (c *fakeCache) Current(context.Context) (*configcache.Snapshot, error) {
	return configcache.NewSnapshot(nil, nil, nil, nil, nil), nil
}

type fakeProcessor struct {
	calls []int64
	err   error
}

func (p *fakeProcessor) ProcessRequestPackages(_ context.Context, req requestdomain.Request, _ *configcache.Snapshot) (processing.Summary, error) {
	p.calls = append(p.calls, req.RequestID)
	return processing.Summary{Packages: 1, Processed: 2}, p.err
}

type harness struct {
	guard     *memGuard
	registrar *fakeRegistrar
	cache     *fakeCache
	processor *fakeProcessor
	coord     *coordinator.Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	h := &harness{
		guard: &memGuard{},
		registrar: &fakeRegistrar{
			byID:        map[int64]requestdomain.Request{},
			cutoff:      time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
			finalStatus: requestdomain.RequestStatusDone,
		},
		cache:     &fakeCache{},
		processor: &fakeProcessor{},
	}
	h.coord, err = coordinator.New(coordinator.Params{
		Log:       zap.NewNop(),
		Node:      node,
		Guard:     h.guard,
		Registrar: h.registrar,
		Cache:     h.cache,
		Processor: h.processor,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) assertReleased(t *testing.T) {
	t.Helper()
	owner, _ := h.guard.ActiveOwner(context.Background())
	assert.Empty(t, owner, "guard must be released")
}

func TestParseModeAliases(t *testing.T) {
	cases := map[string]coordinator.Mode{
		"new": coordinator.ModeNew, "C": coordinator.ModeNew,
		"Resume": coordinator.ModeResume, "r": coordinator.ModeResume,
	}
	for raw, want := range cases {
		got, err := coordinator.ParseMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := coordinator.ParseMode("restart")
	assert.ErrorIs(t, err, coordinator.ErrInvalidMode)
}

func TestInvalidModeIsNoop(t *testing.T) {
	h := newHarness(t)

	res := h.coord.ProcessDiscounts(context.Background(), "bogus", "05")

	assert.Equal(t, coordinator.ActionError, res.Action)
	assert.Zero(t, h.guard.claims)
	assert.Empty(t, h.processor.calls)
}

func TestNewRunProcessesAndFinalizes(t *testing.T) {
	h := newHarness(t)
	h.registrar.registration = requestdomain.Registration{
		Request:   requestdomain.Request{RequestID: 7, Status: requestdomain.RequestStatusWorking, BillCycle: "05"},
		Contracts: 2,
		Packages:  1,
	}

	res := h.coord.ProcessDiscounts(context.Background(), "new", "05")

	assert.Equal(t, coordinator.ActionProcessed, res.Action)
	assert.Equal(t, coordinator.ModeNew, res.Mode)
	assert.Equal(t, int64(7), res.RequestID)
	assert.Equal(t, requestdomain.RequestStatusDone, res.Status)
	assert.Equal(t, 2, res.Summary.Processed)
	assert.Equal(t, 1, h.cache.refreshes)
	assert.Equal(t, []string{"05"}, h.registrar.registered)
	assert.Equal(t, []int64{7}, h.processor.calls)
	assert.Equal(t, []int64{7}, h.registrar.finalized)
	h.assertReleased(t)
}

func TestNewRunRejectedWhileRequestOngoing(t *testing.T) {
	h := newHarness(t)
	h.registrar.ongoing = &requestdomain.Request{RequestID: 3, Status: requestdomain.RequestStatusWorking}

	res := h.coord.ProcessDiscounts(context.Background(), "new", "05")

	assert.Equal(t, coordinator.ActionRejected, res.Action)
	assert.Equal(t, int64(3), res.RequestID)
	assert.Empty(t, h.registrar.registered)
	h.assertReleased(t)
}

func TestNewRunRejectsUnknownBillCycle(t *testing.T) {
	h := newHarness(t)

	res := h.coord.ProcessDiscounts(context.Background(), "new", "07")

	assert.Equal(t, coordinator.ActionError, res.Action)
	assert.Contains(t, res.Reason, "valid values are 90, 05, 02, or 03")
	assert.Zero(t, h.cache.refreshes)
	h.assertReleased(t)
}

func TestNewRunStopsOnFutureCutoff(t *testing.T) {
	h := newHarness(t)
	h.registrar.cutoffErr = requestdomain.ErrCutoffInFuture

	res := h.coord.ProcessDiscounts(context.Background(), "c", "90")

	assert.Equal(t, coordinator.ActionError, res.Action)
	assert.Zero(t, h.cache.refreshes)
	assert.Empty(t, h.registrar.registered)
	h.assertReleased(t)
}

func TestNewRunWithoutEligibleContractsIsSkipped(t *testing.T) {
	h := newHarness(t)

	res := h.coord.ProcessDiscounts(context.Background(), "new", "02")

	assert.Equal(t, coordinator.ActionSkipped, res.Action)
	assert.Empty(t, h.processor.calls)
	assert.Empty(t, h.registrar.finalized)
}

func TestBusyGuardRejectsRun(t *testing.T) {
	h := newHarness(t)
	ok, err := h.guard.Claim(context.Background(), "someone-else")
	require.NoError(t, err)
	require.True(t, ok)

	res := h.coord.ProcessDiscounts(context.Background(), "new", "05")

	assert.Equal(t, coordinator.ActionRejected, res.Action)
	owner, _ := h.guard.ActiveOwner(context.Background())
	assert.Equal(t, "someone-else", owner)
}

func TestResumeRefusesRunningAndCompletedRequests(t *testing.T) {
	h := newHarness(t)
	h.registrar.byID[1] = requestdomain.Request{RequestID: 1, Status: requestdomain.RequestStatusWorking}
	h.registrar.byID[2] = requestdomain.Request{RequestID: 2, Status: requestdomain.RequestStatusDone}

	running := h.coord.ProcessDiscounts(context.Background(), "resume", "1")
	done := h.coord.ProcessDiscounts(context.Background(), "resume", "2")

	assert.Equal(t, coordinator.ActionRejected, running.Action)
	assert.Contains(t, running.Reason, "already running")
	assert.Equal(t, coordinator.ActionRejected, done.Action)
	assert.Contains(t, done.Reason, "already completed")
	assert.Empty(t, h.registrar.resets)
	h.assertReleased(t)
}

func TestResumeFailedRequestReprocesses(t *testing.T) {
	h := newHarness(t)
	h.registrar.byID[4] = requestdomain.Request{RequestID: 4, Status: requestdomain.RequestStatusFailed, BillCycle: "03"}
	h.registrar.resetCount = 5

	res := h.coord.ProcessDiscounts(context.Background(), "r", "4")

	assert.Equal(t, coordinator.ActionProcessed, res.Action)
	assert.Equal(t, []int64{4}, h.registrar.resets)
	assert.Equal(t, []int64{4}, h.processor.calls)
	assert.Equal(t, []int64{4}, h.registrar.finalized)
	assert.Zero(t, h.cache.refreshes)
}

func TestResumeWithNothingToResetIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.registrar.byID[4] = requestdomain.Request{RequestID: 4, Status: requestdomain.RequestStatusFailed}

	res := h.coord.ProcessDiscounts(context.Background(), "resume", "4")

	assert.Equal(t, coordinator.ActionSkipped, res.Action)
	assert.Empty(t, h.processor.calls)
}

func TestResumeUnexpectedStatusIsError(t *testing.T) {
	h := newHarness(t)
	h.registrar.byID[9] = requestdomain.Request{RequestID: 9, Status: "X"}

	res := h.coord.ProcessDiscounts(context.Background(), "resume", "9")

	assert.Equal(t, coordinator.ActionError, res.Action)
	assert.Empty(t, h.registrar.resets)
}

func TestResumeRejectsNonNumericInput(t *testing.T) {
	h := newHarness(t)

	res := h.coord.ProcessDiscounts(context.Background(), "resume", "abc")

	assert.Equal(t, coordinator.ActionError, res.Action)
	h.assertReleased(t)
}

func TestProcessingErrorStillFinalizes(t *testing.T) {
	h := newHarness(t)
	h.registrar.registration = requestdomain.Registration{
		Request:   requestdomain.Request{RequestID: 8, Status: requestdomain.RequestStatusWorking},
		Contracts: 1,
	}
	h.registrar.finalStatus = requestdomain.RequestStatusFailed
	h.processor.err = errors.New("list packages: connection reset")

	res := h.coord.ProcessDiscounts(context.Background(), "new", "05")

	assert.Equal(t, coordinator.ActionError, res.Action)
	assert.Equal(t, requestdomain.RequestStatusFailed, res.Status)
	assert.Equal(t, []int64{8}, h.registrar.finalized)
	h.assertReleased(t)
}
