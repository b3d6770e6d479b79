package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	DiscountRepo domain.Repository
	RequestRepo  requestdomain.Repository
}

// Recorder persists the outcome of one contract and advances its assignment.
type Recorder struct {
	log          *zap.Logger
	discountRepo domain.Repository
	requestRepo  requestdomain.Repository
}

func New(p Params) (*Recorder, error) {
	if p.Log == nil || p.DiscountRepo == nil || p.RequestRepo == nil {
		return nil, domain.ErrInvalidConfig
	}
	return &Recorder{
		log:          p.Log.Named("lifecycle").With(zap.String("component", "lifecycle")),
		discountRepo: p.DiscountRepo,
		requestRepo:  p.RequestRepo,
	}, nil
}

// Record writes the contract, then the eval and grant history, then the
// assignment. The first failing write aborts the rest. Callers run it inside
// the contract's transaction.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, out *domain.Outcome, cutoff time.Time) error {
	if !out.Granted() {
		if err := r.requestRepo.UpdateContractOutcome(ctx, tx, &out.Contract); err != nil {
			return r.fail("contract", out, err)
		}
		return nil
	}

	out.Contract.Status, out.Contract.Remark = Summarize(out.Grant)

	if err := r.requestRepo.UpdateContractOutcome(ctx, tx, &out.Contract); err != nil {
		return r.fail("contract", out, err)
	}
	if err := r.discountRepo.InsertEvalHistory(ctx, tx, out.Eval); err != nil {
		return r.fail("eval_history", out, err)
	}
	if err := r.discountRepo.InsertGrantHistory(ctx, tx, out.Grant); err != nil {
		return r.fail("grant_history", out, err)
	}

	var expire *time.Time
	if out.Grant.LastApply {
		expire = &cutoff
	}
	rows, err := r.discountRepo.MarkAssignmentApplied(ctx, tx, out.Grant.AssignID, cutoff, out.Grant.CurrentApplyCount, expire)
	if err != nil {
		return r.fail("assignment", out, err)
	}
	if rows == 0 {
		return r.fail("assignment", out, fmt.Errorf("assign %d: %w", out.Grant.AssignID, domain.ErrAssignmentMissing))
	}

	r.log.Debug("lifecycle.recorded",
		zap.Int64("co_id", out.Contract.CoID),
		zap.Int64("assign_id", out.Grant.AssignID),
		zap.String("status", string(out.Contract.Status)),
		zap.Bool("last_apply", out.Grant.LastApply),
	)
	return nil
}

func (r *Recorder) fail(step string, out *domain.Outcome, err error) error {
	r.log.Error("lifecycle.write.failed",
		zap.String("step", step),
		zap.Int64("request_id", out.Contract.RequestID),
		zap.Int64("co_id", out.Contract.CoID),
		zap.Error(err),
	)
	return fmt.Errorf("record %s for contract %d: %w", step, out.Contract.CoID, err)
}

// Summarize derives the contract status and remark from the OCC flags of a
// grant. A type counts as failed when it had a positive amount but no OCC.
func Summarize(grant *domain.GrantHistory) (requestdomain.ContractStatus, string) {
	offerRequested := grant.OfferDiscAmount.IsPositive()
	aloRequested := grant.AloDiscAmount.IsPositive()
	offerFailed := offerRequested && !grant.OfferOccCreated
	aloFailed := aloRequested && !grant.AloOccCreated

	prefix := fmt.Sprintf("AssignId=%d: ", grant.AssignID)
	if offerFailed || aloFailed {
		var causes []string
		if offerFailed {
			causes = append(causes, "Offer OCC creation failure")
		}
		if aloFailed {
			causes = append(causes, "ALO OCC creation failure")
		}
		return requestdomain.ContractStatusFailed, prefix + "Failed due to: " + strings.Join(causes, " and ") + "."
	}

	var detail string
	switch {
	case grant.OfferOccCreated && grant.AloOccCreated:
		detail = "both Offer and ALO OCCs granted"
	case grant.OfferOccCreated:
		detail = "Offer OCC granted"
	case grant.AloOccCreated:
		detail = "ALO OCC granted"
	default:
		detail = "no OCC granted"
	}
	return requestdomain.ContractStatusProcessed, prefix + "Successfully applied (" + detail + ")."
}
