package granting_test

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
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/granting"
	"github.com/amrherek/OJO-DynamicDiscount/internal/testutil"
	"github.com/amrherek/OJO-DynamicDiscount/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingAdjuster struct {
	mu    sync.Mutex
	calls []billingadjustment.Request
	errs  map[string]error
}

func (a *recordingAdjuster) Post(_ context.Context, _ *gorm.DB, req billingadjustment.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, req)
	return a.errs[req.Remark]
}

func newService(t *testing.T, adj billingadjustment.Adjuster, enabled bool) *granting.Service {
	t.Helper()
	svc, err := granting.New(granting.Params{
		Adjuster: adj,
		Config:   config.Config{Grant: config.GrantConfig{Enabled: enabled}},
		Log:      zap.NewNop(),
	})
	require.NoError(t, err)
	return svc
}

func sampleEval() *domain.EvalHistory {
	return &domain.EvalHistory{
		RequestID:         1,
		AssignID:          5,
		CustomerID:        42,
		CoID:              4200,
		BillPeriodEndDate: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		TmCode:            11,
		OccSncode:         77,
		OccGlcode:         "GL-DISC",
		OccRemark:         "Loyalty",
	}
}

func sampleGrant(offer, alo string, aloInd bool) *domain.GrantHistory {
	return &domain.GrantHistory{
		RequestID:       1,
		AssignID:        5,
		OfferDiscAmount: decimal.RequireFromString(offer),
		AloDiscAmount:   decimal.RequireFromString(alo),
		AloDiscInd:      aloInd,
	}
}

func TestGrantPostsOfferAndAlo(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	adj := &recordingAdjuster{}
	grant := sampleGrant("5", "2", true)

	err := newService(t, adj, true).Grant(context.Background(), conn, sampleEval(), grant)
	require.NoError(t, err)

	assert.True(t, grant.OfferOccCreated)
	assert.True(t, grant.AloOccCreated)
	require.Len(t, adj.calls, 2)

	offer := adj.calls[0]
	assert.Equal(t, int64(42), offer.CustomerID)
	assert.Equal(t, int64(4200), offer.CoID)
	assert.True(t, offer.Amount.Equal(decimal.NewFromInt(-5)))
	assert.Equal(t, "Loyalty", offer.Remark)
	assert.Equal(t, "GL-DISC", offer.GlCode)
	assert.Equal(t, int64(77), offer.SnCode)
	assert.Equal(t, int64(11), offer.TmCode)
	assert.Equal(t, time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC), offer.ValidFrom)
	assert.Equal(t, offer.ValidFrom, offer.EffectiveDate)

	alo := adj.calls[1]
	assert.True(t, alo.Amount.Equal(decimal.NewFromInt(-2)))
	assert.Equal(t, "Loyalty ALO", alo.Remark)
}

func TestGrantSkipsAloWithoutIndicator(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	adj := &recordingAdjuster{}
	grant := sampleGrant("5", "2", false)

	require.NoError(t, newService(t, adj, true).Grant(context.Background(), conn, sampleEval(), grant))

	assert.Len(t, adj.calls, 1)
	assert.True(t, grant.OfferOccCreated)
	assert.False(t, grant.AloOccCreated)
}

func TestGrantZeroAmountNeverCallsAdjuster(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	adj := &recordingAdjuster{}
	grant := sampleGrant("0", "0", true)

	require.NoError(t, newService(t, adj, true).Grant(context.Background(), conn, sampleEval(), grant))

	assert.Empty(t, adj.calls)
	assert.False(t, grant.OfferOccCreated)
	assert.False(t, grant.AloOccCreated)
}

func TestGrantPermanentFailureIsIsolatedPerType(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	adj := &recordingAdjuster{errs: map[string]error{"Loyalty": errors.New("invalid gl code")}}
	grant := sampleGrant("5", "2", true)

	err := newService(t, adj, true).Grant(context.Background(), conn, sampleEval(), grant)
	require.NoError(t, err)

	assert.Len(t, adj.calls, 2, "a failed offer does not block the ALO attempt")
	assert.False(t, grant.OfferOccCreated)
	assert.True(t, grant.AloOccCreated)
}

func TestGrantTransientFailureIsReturned(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	adj := &recordingAdjuster{errs: map[string]error{"Loyalty ALO": fmt.Errorf("post occ: %w", db.ErrTransient)}}
	grant := sampleGrant("5", "2", true)

	err := newService(t, adj, true).Grant(context.Background(), conn, sampleEval(), grant)

	require.Error(t, err)
	assert.True(t, db.IsTransientErr(err))
	assert.True(t, grant.OfferOccCreated)
	assert.False(t, grant.AloOccCreated)
}

func TestGrantDisabledMarksCreatedWithoutCalling(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	adj := &recordingAdjuster{}
	grant := sampleGrant("5", "0", true)

	require.NoError(t, newService(t, adj, false).Grant(context.Background(), conn, sampleEval(), grant))

	assert.Empty(t, adj.calls)
	assert.True(t, grant.OfferOccCreated)
	assert.False(t, grant.AloOccCreated, "zero amounts stay uncreated even in dry-run")
}

func TestGrantWithTableAdjusterWritesOccRows(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	adj := billingadjustment.NewTableAdjuster("DYN_DISC", clock.New())
	grant := sampleGrant("5", "2", true)

	require.NoError(t, newService(t, adj, true).Grant(context.Background(), conn, sampleEval(), grant))

	var count int64
	require.NoError(t, conn.Model(&billingadjustment.Adjustment{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
