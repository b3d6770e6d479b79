package evaluation

import (
	"fmt"

	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"github.com/shopspring/decimal"
)

const NoteApplied = "Successfully applied"

// Calculator computes the amounts granted for a validated candidate.
type Calculator struct {
	Username string
}

func (c Calculator) Compute(snap *configcache.Snapshot, contract requestdomain.Contract, cand domain.Candidate) (*domain.GrantHistory, error) {
	conf, ok := snap.Conf(cand.DiscID)
	if !ok {
		return nil, fmt.Errorf("compute assign %d: no config for disc %d", cand.AssignID, cand.DiscID)
	}
	offer, ok := bestOffer(snap.OffersFor(cand.DiscID), cand)
	if !ok {
		return nil, fmt.Errorf("compute assign %d: %w", cand.AssignID, domain.ErrOfferNotFound)
	}

	monthNo := cand.ApplyCount + 1
	aloInd := conf.AloDiscInd
	baseOffer := cand.OfferPrice
	baseAlo := cand.AloBasePrice()

	isFree := offer.FreeMonthInd && snap.IsFreeMonth(offer.OfferID, monthNo)
	special, hasSpecial := snap.SpecialMonth(offer.OfferID, monthNo)
	isSpecial := !isFree && offer.SpecialMonthInd && hasSpecial

	var offerAmt, aloAmt decimal.Decimal
	switch {
	case isFree:
		offerAmt = baseOffer
		if aloInd {
			aloAmt = baseAlo
		}
	case isSpecial:
		offerAmt = special.OfferDiscAmt
		if aloInd {
			aloAmt = special.AloDiscAmt
		}
	default:
		offerAmt = flatAmount(offer.OfferDiscAmt, conf.OfferDiscAmt)
		if aloInd {
			aloAmt = flatAmount(offer.AloDiscAmt, conf.AloDiscAmt)
		}
	}

	offerAmt, offerCapped := capAt(offerAmt, baseOffer)
	aloCapped := false
	if aloInd {
		aloAmt, aloCapped = capAt(aloAmt, baseAlo)
	}

	return &domain.GrantHistory{
		RequestID:         contract.RequestID,
		AssignID:          cand.AssignID,
		OfferDiscAmount:   offerAmt,
		FreeMonth:         isFree,
		SpecialMonth:      isSpecial,
		OfferCapped:       offerCapped,
		CurrentApplyCount: monthNo,
		LastApply:         IsLastApply(conf, monthNo),
		AloDiscAmount:     aloAmt,
		AloDiscInd:        aloInd,
		AloCapped:         aloCapped,
		Note:              NoteApplied,
		Username:          c.Username,
	}, nil
}

// IsLastApply reports whether monthNo is the final application of a
// finite discount.
func IsLastApply(conf domain.Conf, monthNo int) bool {
	return conf.Finite() && monthNo == *conf.Duration
}

func flatAmount(offerAmt decimal.NullDecimal, confAmt decimal.Decimal) decimal.Decimal {
	if offerAmt.Valid {
		return offerAmt.Decimal
	}
	return confAmt
}

// capAt clamps amount to max and reports whether it had to.
func capAt(amount, max decimal.Decimal) (decimal.Decimal, bool) {
	if amount.GreaterThan(max) {
		return max, true
	}
	return amount, false
}
