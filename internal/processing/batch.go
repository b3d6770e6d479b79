package processing

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	discountdomain "github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	obsmetrics "github.com/amrherek/OJO-DynamicDiscount/internal/observability/metrics"
	"github.com/amrherek/OJO-DynamicDiscount/internal/observability/tracing"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid processing config")

const maxRemarkLen = 500

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Tuning       *config.TuningHolder
	Evaluator    Evaluator
	Granter      Granter
	Recorder     Recorder
	RequestRepo  requestdomain.Repository
	DiscountRepo discountdomain.Repository
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

// BatchProcessor fans a request out over its pending packages, and each
// package over chunks of contracts, with both levels bounded.
type BatchProcessor struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	tuning       *config.TuningHolder
	contracts    *ContractProcessor
	requestRepo  requestdomain.Repository
	discountRepo discountdomain.Repository
	counters     *obsmetrics.ProcessingMetrics
	otel         *obsmetrics.Metrics
}

func New(p Params) (*BatchProcessor, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Tuning == nil ||
		p.Evaluator == nil || p.Granter == nil || p.Recorder == nil ||
		p.RequestRepo == nil || p.DiscountRepo == nil {
		return nil, ErrInvalidConfig
	}
	log := p.Log.Named("processing").With(zap.String("component", "processing"))
	return &BatchProcessor{
		db:           p.DB,
		log:          log,
		clock:        p.Clock,
		tuning:       p.Tuning,
		contracts:    NewContractProcessor(p.DB, log, p.Evaluator, p.Granter, p.Recorder),
		requestRepo:  p.RequestRepo,
		discountRepo: p.DiscountRepo,
		counters:     obsmetrics.Processing(),
		otel:         p.Metrics,
	}, nil
}

// ProcessRequestPackages processes every package of req still in I and
// waits for all of them. Package failures are recorded on the package and
// do not fail the call.
func (b *BatchProcessor) ProcessRequestPackages(ctx context.Context, req requestdomain.Request, snap *configcache.Snapshot) (Summary, error) {
	cfg := FromTuning(b.tuning.Get())
	run := &requestRun{requestID: req.RequestID, startedAt: b.clock.Now()}

	ctx, span := tracing.Start(ctx, "processing.request", attribute.Int64("request_id", req.RequestID))
	packIDs, err := b.requestRepo.FindPackageIDsByStatus(ctx, b.db, req.RequestID, requestdomain.PackageStatusInitial)
	if err != nil {
		tracing.End(span, err)
		return Summary{}, fmt.Errorf("list packages of request %d: %w", req.RequestID, err)
	}

	b.logRunStart(ctx, run, len(packIDs), cfg)

	var g errgroup.Group
	g.SetLimit(cfg.MaxConcurrentPackages)
	for _, packID := range packIDs {
		key := requestdomain.PackageKey{RequestID: req.RequestID, PackID: packID}
		g.Go(func() error {
			b.processPackage(ctx, cfg, req, snap, key, run)
			return nil
		})
	}
	_ = g.Wait()

	summary := run.summary(b.clock.Now())
	b.logRunFinish(ctx, run.requestID, summary)
	tracing.End(span, nil)
	return summary, nil
}

// processPackage marks the package W, runs its chunks and marks it P, or F
// when anything escaped the per-contract handling.
func (b *BatchProcessor) processPackage(ctx context.Context, cfg Config, req requestdomain.Request, snap *configcache.Snapshot, key requestdomain.PackageKey, run *requestRun) {
	started := b.clock.Now()
	ctx, span := tracing.Start(ctx, "processing.package",
		attribute.Int64("request_id", key.RequestID),
		attribute.Int("pack_id", key.PackID),
	)
	run.packages.Add(1)

	err := b.markStarted(ctx, key, started)
	if err == nil {
		err = b.runPackage(ctx, cfg, req, snap, key, run)
	}

	status := requestdomain.PackageStatusDone
	if err != nil {
		status = requestdomain.PackageStatusFailed
		run.failed.Add(1)
		b.logPackageError(ctx, key, "processing.package.failed", err)
	}
	if markErr := b.requestRepo.MarkPackageFinished(ctx, b.db, key, status, b.clock.Now()); markErr != nil {
		b.logPackageError(ctx, key, "processing.package.mark_failed", markErr)
		err = errors.Join(err, markErr)
	}
	b.counters.IncPackage(string(status), b.clock.Now().Sub(started))
	tracing.End(span, err)
}

func (b *BatchProcessor) markStarted(ctx context.Context, key requestdomain.PackageKey, at time.Time) error {
	if err := b.requestRepo.MarkPackageStarted(ctx, b.db, key, at); err != nil {
		return fmt.Errorf("mark package started: %w", err)
	}
	return nil
}

func (b *BatchProcessor) runPackage(ctx context.Context, cfg Config, req requestdomain.Request, snap *configcache.Snapshot, key requestdomain.PackageKey, run *requestRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("package %d panicked: %v", key.PackID, r)
		}
	}()

	candidates, err := b.discountRepo.FindCandidatesByPackage(ctx, b.db, key, req.BillPeriodEndDate)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}
	contracts, err := b.requestRepo.FindContractsByPackage(ctx, b.db, key, requestdomain.ContractStatusInitial)
	if err != nil {
		return fmt.Errorf("load contracts: %w", err)
	}
	if len(contracts) == 0 {
		b.logger(ctx).Debug("processing.package.empty", zap.Int("pack_id", key.PackID))
		return nil
	}

	byContract := make(map[int64][]discountdomain.Candidate, len(contracts))
	for _, c := range candidates {
		byContract[c.CoID] = append(byContract[c.CoID], c)
	}

	var g errgroup.Group
	g.SetLimit(cfg.MaxConcurrentChunks)
	for _, chunk := range chunkContracts(contracts, cfg.ContractsPerChunk) {
		g.Go(func() error {
			return b.processContractChunk(ctx, cfg, req, snap, chunk, byContract, run)
		})
	}
	return g.Wait()
}

// processContractChunk handles its contracts one after another. A failed
// contract is marked F and the chunk moves on; only a failure to record
// that F is returned.
func (b *BatchProcessor) processContractChunk(
	ctx context.Context,
	cfg Config,
	req requestdomain.Request,
	snap *configcache.Snapshot,
	contracts []requestdomain.Contract,
	byContract map[int64][]discountdomain.Candidate,
	run *requestRun,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("contract chunk panicked: %v", r)
		}
	}()

	for _, contract := range contracts {
		status, procErr := b.contracts.Process(ctx, cfg.Retry, req, snap, contract, byContract[contract.CoID])
		if procErr != nil {
			b.counters.IncContractError(procErr)
			b.logger(ctx).Error("processing.contract.failed",
				zap.Int64("co_id", contract.CoID),
				zap.Int64("customer_id", contract.CustomerID),
				zap.Error(procErr),
			)
			remark := truncate(fmt.Sprintf("Error while processing contract %d: %v", contract.CoID, procErr), maxRemarkLen)
			if markErr := b.requestRepo.UpdateContractStatusAndRemark(ctx, b.db, req.RequestID, contract.CoID, requestdomain.ContractStatusFailed, remark); markErr != nil {
				return fmt.Errorf("mark contract %d failed: %w", contract.CoID, markErr)
			}
			status = requestdomain.ContractStatusFailed
		}
		run.countContract(status)
		b.counters.IncContract(string(status))
		b.otel.RecordContractOutcome(ctx, req.BillCycle, string(status))
	}
	return nil
}

func chunkContracts(contracts []requestdomain.Contract, size int) [][]requestdomain.Contract {
	if size <= 0 {
		size = max(len(contracts), 1)
	}
	chunks := make([][]requestdomain.Contract, 0, (len(contracts)+size-1)/size)
	for start := 0; start < len(contracts); start += size {
		end := min(start+size, len(contracts))
		chunks = append(chunks, contracts[start:end])
	}
	return chunks
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
