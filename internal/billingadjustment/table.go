package billingadjustment

import (
	"context"
	"fmt"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Adjustment is a row of occ_adjustment, the outbox billing imports OCCs from.
type Adjustment struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	CustomerID    int64           `gorm:"column:customer_id"`
	CoID          int64           `gorm:"column:co_id"`
	EffectiveDate time.Time       `gorm:"column:effective_date"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(14,4)"`
	Remark        string          `gorm:"column:remark"`
	GlCode        string          `gorm:"column:glcode"`
	SnCode        int64           `gorm:"column:sncode"`
	TmCode        int64           `gorm:"column:tmcode"`
	ValidFrom     time.Time       `gorm:"column:valid_from"`
	Username      string          `gorm:"column:username"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (Adjustment) TableName() string { return "occ_adjustment" }

type TableAdjuster struct {
	username string
	clock    clock.Clock
}

func NewTableAdjuster(username string, clk clock.Clock) *TableAdjuster {
	return &TableAdjuster{username: username, clock: clk}
}

func (a *TableAdjuster) Post(ctx context.Context, db *gorm.DB, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	row := Adjustment{
		CustomerID:    req.CustomerID,
		CoID:          req.CoID,
		EffectiveDate: req.EffectiveDate,
		Amount:        req.Amount,
		Remark:        req.Remark,
		GlCode:        req.GlCode,
		SnCode:        req.SnCode,
		TmCode:        req.TmCode,
		ValidFrom:     req.ValidFrom,
		Username:      a.username,
		CreatedAt:     a.clock.Now(),
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert occ for contract %d: %w", req.CoID, err)
	}
	return nil
}
