package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	RemarkNoDiscounts = "No discounts provided"
	remarkNoValid     = "No valid discount"
	remarkEvalError   = "Error during discount evaluation for contract"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
}

// Service picks the winning candidate of a contract and computes its grant.
type Service struct {
	log        *zap.Logger
	validator  Validator
	calculator Calculator
}

func New(p Params) (*Service, error) {
	if p.Log == nil {
		return nil, domain.ErrInvalidConfig
	}
	return &Service{
		log:        p.Log.Named("evaluation").With(zap.String("component", "evaluation")),
		calculator: Calculator{Username: p.Config.Grant.Username},
	}, nil
}

// Evaluate never fails. Problems are reported through the contract status
// and remark of the returned outcome.
func (s *Service) Evaluate(ctx context.Context, snap *configcache.Snapshot, req requestdomain.Request, contract requestdomain.Contract, candidates []domain.Candidate) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("evaluation.panic",
				zap.Int64("co_id", contract.CoID),
				zap.Any("panic", r),
			)
			out = failed(contract)
		}
	}()

	if len(candidates) == 0 {
		return skipped(contract, RemarkNoDiscounts)
	}
	if snap == nil {
		s.log.Error("evaluation.error", zap.Int64("co_id", contract.CoID), zap.Error(domain.ErrSnapshotNotLoaded))
		return failed(contract)
	}

	cutoff := req.BillPeriodEndDate
	var (
		valid   []domain.Candidate
		reasons []string
	)
	for _, cand := range candidates {
		if err := s.validator.Validate(snap, cand, cutoff); err != nil {
			reasons = append(reasons, "["+err.Error()+"]")
			s.log.Debug("evaluation.candidate.rejected",
				zap.Int64("co_id", contract.CoID),
				zap.Int64("assign_id", cand.AssignID),
				zap.String("reason", err.Error()),
			)
			continue
		}
		valid = append(valid, cand)
	}
	if len(valid) == 0 {
		remark := fmt.Sprintf("%s (%d invalid): %s", remarkNoValid, len(reasons), strings.Join(reasons, "; "))
		return skipped(contract, remark)
	}

	chosen := selectLatest(valid)
	grant, err := s.calculator.Compute(snap, contract, chosen)
	if err != nil {
		s.log.Error("evaluation.error",
			zap.Int64("co_id", contract.CoID),
			zap.Int64("assign_id", chosen.AssignID),
			zap.Error(err),
		)
		return failed(contract)
	}

	conf, _ := snap.Conf(chosen.DiscID)
	s.log.Debug("evaluation.candidate.selected",
		zap.Int64("co_id", contract.CoID),
		zap.Int64("assign_id", chosen.AssignID),
		zap.Int("month_no", grant.CurrentApplyCount),
	)
	return domain.Outcome{
		Contract: contract,
		Eval:     buildEvalHistory(req, conf, chosen),
		Grant:    grant,
	}
}

// selectLatest returns the candidate with the greatest (assign date, assign id).
func selectLatest(cands []domain.Candidate) domain.Candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.AssignDate.After(best.AssignDate) ||
			(c.AssignDate.Equal(best.AssignDate) && c.AssignID > best.AssignID) {
			best = c
		}
	}
	return best
}

func buildEvalHistory(req requestdomain.Request, conf domain.Conf, cand domain.Candidate) *domain.EvalHistory {
	return &domain.EvalHistory{
		RequestID:         req.RequestID,
		AssignID:          cand.AssignID,
		CustomerID:        cand.CustomerID,
		CoID:              cand.CoID,
		BillPeriodEndDate: req.BillPeriodEndDate,
		LbcDate:           cand.LbcDate,
		PrgCode:           cand.PrgCode,
		TmCode:            cand.TmCode,
		DiscSncode:        cand.DiscSncode,
		DiscID:            cand.DiscID,
		OccSncode:         conf.OccSncode,
		OccGlcode:         conf.OccGlcode,
		OccRemark:         conf.OccRemark,
		OfferSncode:       cand.OfferSncode,
		OfferPrice:        cand.OfferPrice,
		OfferValidFrom:    cand.OfferValidFrom,
		OfferStatus:       cand.OfferStatus,
		AloSncode:         cand.AloSncode,
		AloPrice:          cand.AloPrice,
		AloValidFrom:      cand.AloValidFrom,
		AloStatus:         cand.AloStatus,
	}
}

func skipped(contract requestdomain.Contract, remark string) domain.Outcome {
	contract.Status = requestdomain.ContractStatusSkipped
	contract.Remark = remark
	return domain.Outcome{Contract: contract}
}

func failed(contract requestdomain.Contract) domain.Outcome {
	contract.Status = requestdomain.ContractStatusFailed
	contract.Remark = fmt.Sprintf("%s %d", remarkEvalError, contract.CoID)
	return domain.Outcome{Contract: contract}
}
