package evaluation

import (
	"fmt"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
)

const dateLayout = "2006-01-02 15:04:05"

// Rejection explains why a candidate cannot be applied.
type Rejection struct {
	AssignID int64
	Reason   string
}

func (r *Rejection) Error() string {
	return r.Reason
}

func reject(assignID int64, format string, args ...any) *Rejection {
	return &Rejection{
		AssignID: assignID,
		Reason:   fmt.Sprintf("AssignId %d: ", assignID) + fmt.Sprintf(format, args...),
	}
}

// Validator gates candidates. It reads only the snapshot and the candidate,
// so identical inputs always produce the same answer.
type Validator struct{}

// Validate returns nil when the candidate may be applied on cutoff, or a
// *Rejection for the first rule it fails.
func (Validator) Validate(snap *configcache.Snapshot, cand domain.Candidate, cutoff time.Time) error {
	conf, ok := snap.Conf(cand.DiscID)
	if !ok {
		return reject(cand.AssignID, "No config for DiscId %d.", cand.DiscID)
	}
	if r := checkValidity(conf, cand, cutoff); r != nil {
		return r
	}
	if r := checkLimit(conf, cand); r != nil {
		return r
	}
	if r := checkPriceGroup(snap.PriceGroupsFor(cand.DiscID), cand); r != nil {
		return r
	}
	if r := checkOffer(snap.OffersFor(cand.DiscID), cand); r != nil {
		return r
	}
	return checkOfferStatus(conf, cand)
}

func checkValidity(conf domain.Conf, cand domain.Candidate, cutoff time.Time) *Rejection {
	expired := conf.ValidTo != nil && !conf.ValidTo.After(cutoff)
	notStarted := conf.ValidFrom != nil && !conf.ValidFrom.Before(cutoff)
	if !expired && !notStarted {
		return nil
	}
	return reject(cand.AssignID,
		"Discount expired, not valid for the cutoff date %s (Valid From: %s, Valid To: %s).",
		cutoff.Format(dateLayout), formatOptional(conf.ValidFrom), formatOptional(conf.ValidTo))
}

// ApplyLimit is the number of times an assignment may be applied: the
// per-assignment override when present, else the configured duration, else
// unlimited.
func ApplyLimit(conf domain.Conf, cand domain.Candidate) int {
	if cand.OvwApplyCount != nil {
		return *cand.OvwApplyCount
	}
	if conf.Duration != nil {
		return *conf.Duration
	}
	return domain.Wildcard
}

func checkLimit(conf domain.Conf, cand domain.Candidate) *Rejection {
	limit := ApplyLimit(conf, cand)
	if limit == domain.Wildcard || cand.ApplyCount < limit {
		return nil
	}
	return reject(cand.AssignID, "Limit reached (%d of %d).", cand.ApplyCount, limit)
}

// checkPriceGroup applies the allow-list when one exists, the deny-list
// otherwise. Rules flagged both ways, or neither, are ignored.
func checkPriceGroup(rules []domain.PriceGroupRule, cand domain.Candidate) *Rejection {
	var (
		allowed    = map[string]struct{}{}
		prohibited = map[string]struct{}{}
	)
	for _, r := range rules {
		if r.RestrictInd == r.ProhibitInd {
			continue
		}
		if r.RestrictInd {
			allowed[r.PrgCode] = struct{}{}
		} else {
			prohibited[r.PrgCode] = struct{}{}
		}
	}
	if len(allowed) > 0 {
		if _, ok := allowed[cand.PrgCode]; !ok {
			return reject(cand.AssignID, "Discount restricted - Customer price group '%s' not allowed.", cand.PrgCode)
		}
		return nil
	}
	if _, ok := prohibited[cand.PrgCode]; ok {
		return reject(cand.AssignID, "Discount prohibited - Customer price group '%s' is excluded.", cand.PrgCode)
	}
	return nil
}

func checkOffer(offers []domain.Offer, cand domain.Candidate) *Rejection {
	if _, ok := bestOffer(offers, cand); ok {
		return nil
	}
	return reject(cand.AssignID, "TM/SN (%d/%d) with AssignDate (%s) not eligible for DiscId %d.",
		cand.TmCode, cand.OfferSncode, cand.AssignDate.Format(dateLayout), cand.DiscID)
}

func checkOfferStatus(conf domain.Conf, cand domain.Candidate) error {
	switch cand.OfferStatus {
	case domain.OfferStatusSuspended:
		if !conf.SuspInd {
			return reject(cand.AssignID, "Discount not allowed - Offer Suspended. SNCode: %d", cand.OfferSncode)
		}
	case domain.OfferStatusOnHold:
		return reject(cand.AssignID, "Discount not allowed - Offer On Hold. SNCode: %d", cand.OfferSncode)
	}
	return nil
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}
