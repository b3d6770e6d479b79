package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	discountdomain "github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	obsmetrics "github.com/amrherek/OJO-DynamicDiscount/internal/observability/metrics"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrContractPanicked wraps a panic raised while one contract was evaluated,
// granted or recorded. It is never retried.
var ErrContractPanicked = errors.New("contract processing panicked")

type Evaluator interface {
	Evaluate(ctx context.Context, snap *configcache.Snapshot, req requestdomain.Request, contract requestdomain.Contract, candidates []discountdomain.Candidate) discountdomain.Outcome
}

type Granter interface {
	Grant(ctx context.Context, tx *gorm.DB, eval *discountdomain.EvalHistory, grant *discountdomain.GrantHistory) error
}

type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, out *discountdomain.Outcome, cutoff time.Time) error
}

// ContractProcessor runs evaluate, grant and record for one contract as a
// single transaction, retrying the whole sequence on transient errors.
type ContractProcessor struct {
	db        *gorm.DB
	log       *zap.Logger
	evaluator Evaluator
	granter   Granter
	recorder  Recorder
	metrics   *obsmetrics.ProcessingMetrics
}

func NewContractProcessor(db *gorm.DB, log *zap.Logger, evaluator Evaluator, granter Granter, recorder Recorder) *ContractProcessor {
	return &ContractProcessor{
		db:        db,
		log:       log.Named("contract"),
		evaluator: evaluator,
		granter:   granter,
		recorder:  recorder,
		metrics:   obsmetrics.Processing(),
	}
}

// Process returns the recorded contract status. An error means nothing was
// committed for the contract and the retry budget is spent or the failure
// was not retryable. A panic in any step rolls the transaction back and is
// returned as ErrContractPanicked.
func (p *ContractProcessor) Process(
	ctx context.Context,
	policy RetryPolicy,
	req requestdomain.Request,
	snap *configcache.Snapshot,
	contract requestdomain.Contract,
	candidates []discountdomain.Candidate,
) (requestdomain.ContractStatus, error) {
	attempt := 0
	retrier := NewRetrier(policy, nil, func(err error, next time.Duration) {
		p.metrics.IncContractRetry()
		p.log.Warn("processing.contract.retry",
			zap.Int64("co_id", contract.CoID),
			zap.Int("attempt", attempt),
			zap.Duration("next_in", next),
			zap.Error(err),
		)
	})

	var status requestdomain.ContractStatus
	err := retrier.Do(ctx, func() (err error) {
		attempt++
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrContractPanicked, r)
			}
		}()
		return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			out := p.evaluator.Evaluate(ctx, snap, req, contract, candidates)
			if out.Granted() {
				if err := p.granter.Grant(ctx, tx, out.Eval, out.Grant); err != nil {
					return err
				}
			}
			if err := p.recorder.Record(ctx, tx, &out, req.BillPeriodEndDate); err != nil {
				return err
			}
			status = out.Contract.Status
			return nil
		})
	})
	if err != nil {
		return requestdomain.ContractStatusFailed, fmt.Errorf("contract %d after %d attempt(s): %w", contract.CoID, attempt, err)
	}
	return status, nil
}
