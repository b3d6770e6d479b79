package evaluation

import (
	"testing"

	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCapsFlatAmountAtOfferPrice(t *testing.T) {
	conf := testConf()
	conf.OfferDiscAmt = dec("12")
	snap := snapshotWith(conf, defaultOffers(), nil)

	grant, err := Calculator{Username: "DYN_DISC"}.Compute(snap, testContract(), testCandidate())
	require.NoError(t, err)

	assert.True(t, grant.OfferDiscAmount.Equal(dec("10")))
	assert.True(t, grant.OfferCapped)
	assert.False(t, grant.FreeMonth)
	assert.False(t, grant.SpecialMonth)
	assert.Equal(t, 1, grant.CurrentApplyCount)
	assert.Equal(t, NoteApplied, grant.Note)
	assert.Equal(t, "DYN_DISC", grant.Username)
	assert.False(t, grant.OfferOccCreated)
	assert.False(t, grant.AloOccCreated)
}

func TestComputeFlatAmountBelowPriceIsUnchanged(t *testing.T) {
	snap := snapshotWith(testConf(), defaultOffers(), nil)

	grant, err := Calculator{}.Compute(snap, testContract(), testCandidate())
	require.NoError(t, err)

	assert.True(t, grant.OfferDiscAmount.Equal(dec("5")))
	assert.False(t, grant.OfferCapped)
	assert.True(t, grant.AloDiscAmount.IsZero(), "no ALO amount without the ALO indicator")
	assert.False(t, grant.AloDiscInd)
}

func TestComputePrefersOfferFlatAmount(t *testing.T) {
	offer := testOfferRow(testOffer, testTm, testSn)
	offer.OfferDiscAmt = decimal.NewNullDecimal(dec("3.5"))
	snap := snapshotWith(testConf(), []domain.Offer{offer}, nil)

	grant, err := Calculator{}.Compute(snap, testContract(), testCandidate())
	require.NoError(t, err)
	assert.True(t, grant.OfferDiscAmount.Equal(dec("3.5")))
}

func TestComputeAloAmountCappedIndependently(t *testing.T) {
	conf := testConf()
	conf.AloDiscInd = true
	conf.AloDiscAmt = dec("6")
	snap := snapshotWith(conf, defaultOffers(), nil)

	grant, err := Calculator{}.Compute(snap, testContract(), testCandidate())
	require.NoError(t, err)

	assert.True(t, grant.AloDiscInd)
	assert.True(t, grant.AloDiscAmount.Equal(dec("4")))
	assert.True(t, grant.AloCapped)
	assert.False(t, grant.OfferCapped)
}

func TestComputeFreeMonthTakesPrecedence(t *testing.T) {
	conf := testConf()
	conf.AloDiscInd = true
	offer := testOfferRow(testOffer, testTm, testSn)
	offer.FreeMonthInd = true
	offer.SpecialMonthInd = true
	snap := configcache.NewSnapshot(
		[]domain.Conf{conf},
		[]domain.Offer{offer},
		nil,
		[]domain.FreeMonth{{OfferID: testOffer, MonthNo: 3}},
		[]domain.SpecialMonth{{OfferID: testOffer, MonthNo: 3, OfferDiscAmt: dec("1"), AloDiscAmt: dec("1")}},
	)
	cand := testCandidate()
	cand.ApplyCount = 2

	grant, err := Calculator{}.Compute(snap, testContract(), cand)
	require.NoError(t, err)

	assert.True(t, grant.FreeMonth)
	assert.False(t, grant.SpecialMonth)
	assert.True(t, grant.OfferDiscAmount.Equal(dec("10")))
	assert.True(t, grant.AloDiscAmount.Equal(dec("4")))
	assert.False(t, grant.OfferCapped)
	assert.Equal(t, 3, grant.CurrentApplyCount)
}

func TestComputeFreeMonthNeedsOfferFlag(t *testing.T) {
	snap := configcache.NewSnapshot(
		[]domain.Conf{testConf()},
		defaultOffers(),
		nil,
		[]domain.FreeMonth{{OfferID: testOffer, MonthNo: 1}},
		nil,
	)

	grant, err := Calculator{}.Compute(snap, testContract(), testCandidate())
	require.NoError(t, err)
	assert.False(t, grant.FreeMonth)
	assert.True(t, grant.OfferDiscAmount.Equal(dec("5")))
}

func TestComputeSpecialMonth(t *testing.T) {
	conf := testConf()
	conf.AloDiscInd = true
	offer := testOfferRow(testOffer, testTm, testSn)
	offer.SpecialMonthInd = true
	snap := configcache.NewSnapshot(
		[]domain.Conf{conf},
		[]domain.Offer{offer},
		nil,
		nil,
		[]domain.SpecialMonth{{OfferID: testOffer, MonthNo: 1, OfferDiscAmt: dec("7.25"), AloDiscAmt: dec("1.5")}},
	)

	grant, err := Calculator{}.Compute(snap, testContract(), testCandidate())
	require.NoError(t, err)

	assert.True(t, grant.SpecialMonth)
	assert.True(t, grant.OfferDiscAmount.Equal(dec("7.25")))
	assert.True(t, grant.AloDiscAmount.Equal(dec("1.5")))
}

func TestComputeMissingOfferFails(t *testing.T) {
	snap := snapshotWith(testConf(), nil, nil)

	_, err := Calculator{}.Compute(snap, testContract(), testCandidate())
	assert.ErrorIs(t, err, domain.ErrOfferNotFound)
}

func TestIsLastApply(t *testing.T) {
	conf := testConf()
	assert.False(t, IsLastApply(conf, 5))
	assert.True(t, IsLastApply(conf, 6))

	conf.Duration = ptr(domain.Wildcard)
	assert.False(t, IsLastApply(conf, 1))
	assert.False(t, IsLastApply(conf, -1))

	conf.Duration = nil
	assert.False(t, IsLastApply(conf, 1))
}

func TestComputeLastApplyOnFinalMonth(t *testing.T) {
	snap := snapshotWith(testConf(), defaultOffers(), nil)
	cand := testCandidate()
	cand.ApplyCount = 5

	grant, err := Calculator{}.Compute(snap, testContract(), cand)
	require.NoError(t, err)
	assert.True(t, grant.LastApply)
	assert.Equal(t, 6, grant.CurrentApplyCount)
}

func TestCapAt(t *testing.T) {
	got, capped := capAt(dec("12"), dec("10"))
	assert.True(t, got.Equal(dec("10")))
	assert.True(t, capped)

	got, capped = capAt(dec("10"), dec("10"))
	assert.True(t, got.Equal(dec("10")))
	assert.False(t, capped)
}
