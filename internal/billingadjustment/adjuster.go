// Package billingadjustment posts one-time charges and credits (OCCs) to billing.
package billingadjustment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidRequest = errors.New("invalid billing adjustment request")

// Request is one OCC. Amount is signed: credits are negative.
type Request struct {
	CustomerID    int64
	CoID          int64
	EffectiveDate time.Time
	Amount        decimal.Decimal
	Remark        string
	GlCode        string
	SnCode        int64
	TmCode        int64
	ValidFrom     time.Time
}

func (r Request) Validate() error {
	if r.CustomerID == 0 || r.CoID == 0 {
		return ErrInvalidRequest
	}
	if r.Amount.IsZero() {
		return ErrInvalidRequest
	}
	return nil
}

// Adjuster posts OCCs. Calls are not idempotent: posting the same request
// twice creates two adjustments.
type Adjuster interface {
	Post(ctx context.Context, db *gorm.DB, req Request) error
}
