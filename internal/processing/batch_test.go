package processing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/billingadjustment"
	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	discountdomain "github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/evaluation"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/granting"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/lifecycle"
	discountrepo "github.com/amrherek/OJO-DynamicDiscount/internal/discount/repository"
	"github.com/amrherek/OJO-DynamicDiscount/internal/processing"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	requestrepo "github.com/amrherek/OJO-DynamicDiscount/internal/request/repository"
	"github.com/amrherek/OJO-DynamicDiscount/internal/testutil"
	"github.com/amrherek/OJO-DynamicDiscount/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const discID int64 = 100

var (
	cutoff     = time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	assignedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

// flakyAdjuster fails the OCCs of the contracts listed in errs.
type flakyAdjuster struct {
	mu    sync.Mutex
	errs  map[int64]error
	calls map[int64]int
}

func (a *flakyAdjuster) Post(_ context.Context, _ *gorm.DB, req billingadjustment.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls == nil {
		a.calls = map[int64]int{}
	}
	a.calls[req.CoID]++
	return a.errs[req.CoID]
}

// panickingAdjuster blows up on the OCC of one contract.
type panickingAdjuster struct {
	coID  int64
	calls map[int64]int
}

func (a *panickingAdjuster) Post(_ context.Context, _ *gorm.DB, req billingadjustment.Request) error {
	if req.CoID == a.coID {
		var seen map[int64]bool
		seen[req.CoID] = true
	}
	if a.calls == nil {
		a.calls = map[int64]int{}
	}
	a.calls[req.CoID]++
	return nil
}

type harnessOptions struct {
	tuning config.Tuning
	clock  clock.Clock
}

func defaultHarnessOptions() harnessOptions {
	return harnessOptions{
		tuning: config.Tuning{
			MaxConcurrentPackages: 2,
			MaxConcurrentChunks:   3,
			ContractsPerChunk:     1,
			RetryMaxAttempts:      2,
			RetryInitialInterval:  time.Millisecond,
			RetryMultiplier:       2,
		},
		clock: clock.New(),
	}
}

type harness struct {
	db        *gorm.DB
	req       requestdomain.Request
	snap      *configcache.Snapshot
	processor *processing.BatchProcessor
	reqRepo   requestdomain.Repository
}

func newHarness(t *testing.T, adj billingadjustment.Adjuster, coIDs ...int64) *harness {
	t.Helper()
	return newHarnessWith(t, adj, defaultHarnessOptions(), coIDs...)
}

func newHarnessWith(t *testing.T, adj billingadjustment.Adjuster, opts harnessOptions, coIDs ...int64) *harness {
	t.Helper()
	conn := testutil.OpenSQLite(t)
	ctx := context.Background()
	reqRepo := requestrepo.Provide()
	discRepo := discountrepo.Provide()

	req := requestdomain.Request{
		RequestID:         1,
		Status:            requestdomain.RequestStatusWorking,
		StartDate:         cutoff.AddDate(0, 0, 1),
		BillCycle:         "05",
		BillPeriodEndDate: cutoff,
	}
	require.NoError(t, reqRepo.InsertRequest(ctx, conn, &req))
	require.NoError(t, reqRepo.InsertPackages(ctx, conn, []requestdomain.Package{{
		RequestID: 1, PackID: 1, Status: requestdomain.PackageStatusInitial, EntryDate: req.StartDate, ContractCount: len(coIDs),
	}}))

	contracts := make([]requestdomain.Contract, 0, len(coIDs))
	for _, coID := range coIDs {
		contracts = append(contracts, requestdomain.Contract{
			RequestID: 1, PackID: 1, CustomerID: coID / 10, CoID: coID,
			PrgCode: "PG1", TmCode: 11, Status: requestdomain.ContractStatusInitial,
		})
		require.NoError(t, conn.Create(&discountdomain.Assignment{
			AssignID: coID * 10, CustomerID: coID / 10, CoID: coID, DiscSncode: 900, DiscID: discID, AssignDate: assignedAt,
		}).Error)
		testutil.ServiceState(t, conn, testutil.Service{
			CoID: coID, SnCode: 22, Role: "O", Status: discountdomain.OfferStatusActive,
			ValidFrom: assignedAt.AddDate(0, -1, 0), Price: decimal.NewFromInt(10),
		})
	}
	require.NoError(t, reqRepo.InsertContracts(ctx, conn, contracts))

	dur := 6
	snap := configcache.NewSnapshot(
		[]discountdomain.Conf{{DiscID: discID, Duration: &dur, OfferDiscAmt: decimal.NewFromInt(5), OccRemark: "Loyalty", OccSncode: 77}},
		[]discountdomain.Offer{{OfferID: 1, DiscID: &[]int64{discID}[0], TmCode: 11, SnCode: 22}},
		nil, nil, nil,
	)

	log := zap.NewNop()
	ev, err := evaluation.New(evaluation.Params{Log: log})
	require.NoError(t, err)
	gr, err := granting.New(granting.Params{Adjuster: adj, Config: config.Config{Grant: config.GrantConfig{Enabled: true}}, Log: log})
	require.NoError(t, err)
	rec, err := lifecycle.New(lifecycle.Params{Log: log, DiscountRepo: discRepo, RequestRepo: reqRepo})
	require.NoError(t, err)

	bp, err := processing.New(processing.Params{
		DB:           conn,
		Log:          log,
		Clock:        opts.clock,
		Tuning:       config.NewStaticTuningHolder(opts.tuning),
		Evaluator:    ev,
		Granter:      gr,
		Recorder:     rec,
		RequestRepo:  reqRepo,
		DiscountRepo: discRepo,
	})
	require.NoError(t, err)

	return &harness{db: conn, req: req, snap: snap, processor: bp, reqRepo: reqRepo}
}

func (h *harness) contract(t *testing.T, coID int64) requestdomain.Contract {
	t.Helper()
	var c requestdomain.Contract
	require.NoError(t, h.db.Where("request_id = ? AND co_id = ?", 1, coID).First(&c).Error)
	return c
}

func (h *harness) pkg(t *testing.T) requestdomain.Package {
	t.Helper()
	var p requestdomain.Package
	require.NoError(t, h.db.Where("request_id = ? AND pack_id = ?", 1, 1).First(&p).Error)
	return p
}

func TestGrantFailureIsContainedToItsContract(t *testing.T) {
	adj := &flakyAdjuster{errs: map[int64]error{102: errors.New("billing rejected occ")}}
	h := newHarness(t, adj, 101, 102, 103)

	summary, err := h.processor.ProcessRequestPackages(context.Background(), h.req, h.snap)
	require.NoError(t, err)

	assert.Equal(t, requestdomain.ContractStatusProcessed, h.contract(t, 101).Status)
	assert.Equal(t, requestdomain.ContractStatusProcessed, h.contract(t, 103).Status)
	failed := h.contract(t, 102)
	assert.Equal(t, requestdomain.ContractStatusFailed, failed.Status)
	assert.Equal(t, "AssignId=1020: Failed due to: Offer OCC creation failure.", failed.Remark)

	p := h.pkg(t)
	assert.Equal(t, requestdomain.PackageStatusDone, p.Status)
	assert.NotNil(t, p.StartDate)
	assert.NotNil(t, p.EndDate)

	assert.Equal(t, 1, summary.Packages)
	assert.Equal(t, 0, summary.FailedPackages)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)

	var assign discountdomain.Assignment
	require.NoError(t, h.db.Where("assign_id = ?", 1010).First(&assign).Error)
	assert.Equal(t, 1, assign.ApplyCount)
}

func TestPanicInGrantIsContainedToItsContract(t *testing.T) {
	opts := defaultHarnessOptions()
	opts.tuning.ContractsPerChunk = 10
	adj := &panickingAdjuster{coID: 102}
	h := newHarnessWith(t, adj, opts, 101, 102, 103)

	summary, err := h.processor.ProcessRequestPackages(context.Background(), h.req, h.snap)
	require.NoError(t, err)

	assert.Equal(t, requestdomain.ContractStatusProcessed, h.contract(t, 101).Status)
	assert.Equal(t, requestdomain.ContractStatusProcessed, h.contract(t, 103).Status)
	failed := h.contract(t, 102)
	assert.Equal(t, requestdomain.ContractStatusFailed, failed.Status)
	assert.Contains(t, failed.Remark, "Error while processing contract 102")
	assert.Contains(t, failed.Remark, processing.ErrContractPanicked.Error())

	var grants int64
	require.NoError(t, h.db.Model(&discountdomain.GrantHistory{}).Where("assign_id = ?", 1020).Count(&grants).Error)
	assert.Zero(t, grants, "the panicking contract is rolled back")

	assert.Equal(t, requestdomain.PackageStatusDone, h.pkg(t).Status)
	assert.Equal(t, 0, summary.FailedPackages)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunTimingUsesInjectedClock(t *testing.T) {
	at := time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC)
	opts := defaultHarnessOptions()
	opts.clock = clock.NewFakeClock(at)
	h := newHarnessWith(t, &flakyAdjuster{}, opts, 101)

	summary, err := h.processor.ProcessRequestPackages(context.Background(), h.req, h.snap)
	require.NoError(t, err)

	assert.Zero(t, summary.Duration)
	p := h.pkg(t)
	require.NotNil(t, p.StartDate)
	require.NotNil(t, p.EndDate)
	assert.True(t, at.Equal(*p.StartDate))
	assert.True(t, at.Equal(*p.EndDate))
}

func TestTransientGrantFailureExhaustsRetries(t *testing.T) {
	adj := &flakyAdjuster{errs: map[int64]error{102: fmt.Errorf("post occ: %w", db.ErrTransient)}}
	h := newHarness(t, adj, 101, 102, 103)

	summary, err := h.processor.ProcessRequestPackages(context.Background(), h.req, h.snap)
	require.NoError(t, err)

	failed := h.contract(t, 102)
	assert.Equal(t, requestdomain.ContractStatusFailed, failed.Status)
	assert.Contains(t, failed.Remark, "Error while processing contract 102")
	assert.Equal(t, 2, adj.calls[102], "the whole contract is retried")

	var grants int64
	require.NoError(t, h.db.Model(&discountdomain.GrantHistory{}).Where("assign_id = ?", 1020).Count(&grants).Error)
	assert.Zero(t, grants, "nothing is committed for the failed contract")

	assert.Equal(t, requestdomain.PackageStatusDone, h.pkg(t).Status)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
}

func TestContractWithoutCandidatesIsSkipped(t *testing.T) {
	h := newHarness(t, &flakyAdjuster{}, 101)
	require.NoError(t, h.db.Exec(`DELETE FROM dyn_disc_assign`).Error)

	summary, err := h.processor.ProcessRequestPackages(context.Background(), h.req, h.snap)
	require.NoError(t, err)

	c := h.contract(t, 101)
	assert.Equal(t, requestdomain.ContractStatusSkipped, c.Status)
	assert.Equal(t, evaluation.RemarkNoDiscounts, c.Remark)
	assert.Equal(t, 1, summary.Skipped)
}

func TestPackageFailureLeavesContractsPending(t *testing.T) {
	h := newHarness(t, &flakyAdjuster{}, 101, 102)
	require.NoError(t, h.db.Exec(`DROP TABLE contract_service_snapshot`).Error)

	summary, err := h.processor.ProcessRequestPackages(context.Background(), h.req, h.snap)
	require.NoError(t, err)

	assert.Equal(t, requestdomain.PackageStatusFailed, h.pkg(t).Status)
	assert.Equal(t, requestdomain.ContractStatusInitial, h.contract(t, 101).Status)
	assert.Equal(t, 1, summary.FailedPackages)
}

func TestOnlyInitialPackagesAreProcessed(t *testing.T) {
	adj := &flakyAdjuster{}
	h := newHarness(t, adj, 101)
	require.NoError(t, h.reqRepo.MarkPackageFinished(context.Background(), h.db,
		requestdomain.PackageKey{RequestID: 1, PackID: 1}, requestdomain.PackageStatusDone, cutoff))

	summary, err := h.processor.ProcessRequestPackages(context.Background(), h.req, h.snap)
	require.NoError(t, err)

	assert.Zero(t, summary.Packages)
	assert.Empty(t, adj.calls)
	assert.Equal(t, requestdomain.ContractStatusInitial, h.contract(t, 101).Status)
}
