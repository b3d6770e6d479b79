package billingadjustment

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ProcedureAdjuster calls the billing system's stored procedure. The
// statement takes the nine request fields as positional parameters.
type ProcedureAdjuster struct {
	statement string
}

func NewProcedureAdjuster(statement string) *ProcedureAdjuster {
	return &ProcedureAdjuster{statement: statement}
}

func (a *ProcedureAdjuster) Post(ctx context.Context, db *gorm.DB, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	err := db.WithContext(ctx).Exec(a.statement,
		req.CustomerID,
		req.CoID,
		req.EffectiveDate,
		req.Amount,
		req.Remark,
		req.GlCode,
		req.SnCode,
		req.TmCode,
		req.ValidFrom,
	).Error
	if err != nil {
		return fmt.Errorf("post occ for contract %d: %w", req.CoID, err)
	}
	return nil
}
