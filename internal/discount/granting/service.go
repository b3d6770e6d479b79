package granting

import (
	"context"
	"errors"
	"fmt"

	"github.com/amrherek/OJO-DynamicDiscount/internal/billingadjustment"
	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	obsmetrics "github.com/amrherek/OJO-DynamicDiscount/internal/observability/metrics"
	"github.com/amrherek/OJO-DynamicDiscount/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TypeOffer = "offer"
	TypeALO   = "alo"

	aloRemarkSuffix = " ALO"
)

type Params struct {
	fx.In

	Adjuster billingadjustment.Adjuster
	Config   config.Config
	Log      *zap.Logger
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Service posts the OCCs of a computed grant and records which were created
// on the grant itself.
type Service struct {
	adjuster billingadjustment.Adjuster
	enabled  bool
	log      *zap.Logger
	otel     *obsmetrics.Metrics
	counters *obsmetrics.ProcessingMetrics
}

func New(p Params) (*Service, error) {
	if p.Adjuster == nil || p.Log == nil {
		return nil, domain.ErrInvalidConfig
	}
	log := p.Log.Named("granting").With(zap.String("component", "granting"))
	if !p.Config.Grant.Enabled {
		log.Warn("granting.disabled", zap.String("effect", "occ calls are skipped and reported as created"))
	}
	return &Service{
		adjuster: p.Adjuster,
		enabled:  p.Config.Grant.Enabled,
		log:      log,
		otel:     p.Metrics,
		counters: obsmetrics.Processing(),
	}, nil
}

// Grant attempts the offer OCC and, when the discount carries one, the ALO
// OCC. Each attempt runs in its own savepoint so a rejected call leaves the
// surrounding transaction usable. Rejections only clear the created flag;
// transient errors are returned so the caller can retry the contract.
func (s *Service) Grant(ctx context.Context, tx *gorm.DB, eval *domain.EvalHistory, grant *domain.GrantHistory) error {
	if eval == nil || grant == nil {
		return nil
	}
	validFrom := eval.BillPeriodEndDate.AddDate(0, 0, -1)
	base := billingadjustment.Request{
		CustomerID:    eval.CustomerID,
		CoID:          eval.CoID,
		EffectiveDate: validFrom,
		GlCode:        eval.OccGlcode,
		SnCode:        eval.OccSncode,
		TmCode:        eval.TmCode,
		ValidFrom:     validFrom,
	}

	var errs []error

	offerReq := base
	offerReq.Amount = grant.OfferDiscAmount.Neg()
	offerReq.Remark = eval.OccRemark
	created, err := s.attempt(ctx, tx, TypeOffer, grant.OfferDiscAmount, offerReq)
	grant.OfferOccCreated = created
	if err != nil {
		errs = append(errs, err)
	}

	grant.AloOccCreated = false
	if grant.AloDiscInd {
		aloReq := base
		aloReq.Amount = grant.AloDiscAmount.Neg()
		aloReq.Remark = eval.OccRemark + aloRemarkSuffix
		created, err := s.attempt(ctx, tx, TypeALO, grant.AloDiscAmount, aloReq)
		grant.AloOccCreated = created
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Service) attempt(ctx context.Context, tx *gorm.DB, discountType string, amount decimal.Decimal, req billingadjustment.Request) (bool, error) {
	amountF := amount.InexactFloat64()
	if !amount.IsPositive() {
		s.record(ctx, discountType, obsmetrics.OutcomeSkipped, 0)
		return false, nil
	}
	if !s.enabled {
		s.log.Debug("granting.occ.dry_run",
			zap.String("discount_type", discountType),
			zap.Int64("co_id", req.CoID),
			zap.String("amount", req.Amount.String()),
		)
		s.record(ctx, discountType, obsmetrics.OutcomeCreated, amountF)
		return true, nil
	}

	err := tx.Transaction(func(sp *gorm.DB) error {
		return s.adjuster.Post(ctx, sp, req)
	})
	if err == nil {
		s.log.Info("granting.occ.created",
			zap.String("discount_type", discountType),
			zap.Int64("customer_id", req.CustomerID),
			zap.Int64("co_id", req.CoID),
			zap.String("amount", req.Amount.String()),
		)
		s.record(ctx, discountType, obsmetrics.OutcomeCreated, amountF)
		return true, nil
	}

	s.record(ctx, discountType, obsmetrics.OutcomeFailed, 0)
	if db.IsTransientErr(err) {
		s.log.Warn("granting.occ.transient",
			zap.String("discount_type", discountType),
			zap.Int64("co_id", req.CoID),
			zap.Error(err),
		)
		return false, fmt.Errorf("grant %s occ: %w", discountType, err)
	}
	s.log.Error("granting.occ.failed",
		zap.String("discount_type", discountType),
		zap.Int64("co_id", req.CoID),
		zap.Error(err),
	)
	return false, nil
}

func (s *Service) record(ctx context.Context, discountType, outcome string, amount float64) {
	s.otel.RecordOCC(ctx, discountType, outcome, amount)
	s.counters.IncGrant(discountType, outcome)
}
