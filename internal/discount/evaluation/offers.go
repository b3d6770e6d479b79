package evaluation

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
)

// offer match tiers, lower wins.
const (
	tierExact = iota + 1
	tierServiceOnly
	tierTariffOnly
	tierCatchAll
	tierNone
)

func matchTier(offer domain.Offer, tmCode, snCode int64) int {
	switch {
	case offer.TmCode == tmCode && offer.SnCode == snCode:
		return tierExact
	case offer.TmCode == domain.Wildcard && offer.SnCode == snCode:
		return tierServiceOnly
	case offer.SnCode == domain.Wildcard && offer.TmCode == tmCode:
		return tierTariffOnly
	case offer.TmCode == domain.Wildcard && offer.SnCode == domain.Wildcard:
		return tierCatchAll
	default:
		return tierNone
	}
}

// bestOffer returns the highest-priority offer matching the candidate whose
// eligibility window contains the assignment date. Ties keep the first row.
func bestOffer(offers []domain.Offer, cand domain.Candidate) (domain.Offer, bool) {
	var (
		best     domain.Offer
		bestTier = tierNone
	)
	for _, o := range offers {
		if !o.EligibleOn(cand.AssignDate) {
			continue
		}
		tier := matchTier(o, cand.TmCode, cand.OfferSncode)
		if tier < bestTier {
			best, bestTier = o, tier
		}
	}
	return best, bestTier != tierNone
}
