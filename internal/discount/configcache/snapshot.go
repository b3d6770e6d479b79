package configcache

import (
	"context"
	"fmt"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	"github.com/amrherek/OJO-DynamicDiscount/pkg/db/option"
	"github.com/amrherek/OJO-DynamicDiscount/pkg/repository"
	"gorm.io/gorm"
)

// Snapshot is an immutable view of the discount reference tables. It is
// built once by Load and never mutated afterwards.
type Snapshot struct {
	Confs         map[int64]domain.Conf
	Offers        map[int64][]domain.Offer
	PriceGroups   map[int64][]domain.PriceGroupRule
	FreeMonths    map[domain.MonthKey]struct{}
	SpecialMonths map[domain.MonthKey]domain.SpecialMonth
	LoadedAt      time.Time
}

func (s *Snapshot) Conf(discID int64) (domain.Conf, bool) {
	conf, ok := s.Confs[discID]
	return conf, ok
}

func (s *Snapshot) OffersFor(discID int64) []domain.Offer {
	return s.Offers[discID]
}

func (s *Snapshot) PriceGroupsFor(discID int64) []domain.PriceGroupRule {
	return s.PriceGroups[discID]
}

func (s *Snapshot) IsFreeMonth(offerID int64, monthNo int) bool {
	_, ok := s.FreeMonths[domain.MonthKey{OfferID: offerID, MonthNo: monthNo}]
	return ok
}

func (s *Snapshot) SpecialMonth(offerID int64, monthNo int) (domain.SpecialMonth, bool) {
	m, ok := s.SpecialMonths[domain.MonthKey{OfferID: offerID, MonthNo: monthNo}]
	return m, ok
}

// Load reads every reference table and builds a new snapshot.
func Load(ctx context.Context, db *gorm.DB, loadedAt time.Time) (*Snapshot, error) {
	confs, err := repository.For[domain.Conf](db).Load(ctx, option.OrderBy("disc_id"))
	if err != nil {
		return nil, fmt.Errorf("load discount configs: %w", err)
	}
	offers, err := repository.For[domain.Offer](db).Load(ctx, option.OrderBy("offer_id"))
	if err != nil {
		return nil, fmt.Errorf("load discount offers: %w", err)
	}
	groups, err := repository.For[domain.PriceGroupRule](db).Load(ctx, option.OrderBy("disc_id, prgcode"))
	if err != nil {
		return nil, fmt.Errorf("load price group rules: %w", err)
	}
	free, err := repository.For[domain.FreeMonth](db).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load free months: %w", err)
	}
	special, err := repository.For[domain.SpecialMonth](db).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load special months: %w", err)
	}

	return build(confs, offers, groups, free, special, loadedAt), nil
}

func build(
	confs []*domain.Conf,
	offers []*domain.Offer,
	groups []*domain.PriceGroupRule,
	free []*domain.FreeMonth,
	special []*domain.SpecialMonth,
	loadedAt time.Time,
) *Snapshot {
	snap := &Snapshot{
		Confs:         make(map[int64]domain.Conf, len(confs)),
		Offers:        make(map[int64][]domain.Offer),
		PriceGroups:   make(map[int64][]domain.PriceGroupRule),
		FreeMonths:    make(map[domain.MonthKey]struct{}, len(free)),
		SpecialMonths: make(map[domain.MonthKey]domain.SpecialMonth, len(special)),
		LoadedAt:      loadedAt,
	}
	for _, c := range confs {
		snap.Confs[c.DiscID] = *c
	}
	for _, o := range offers {
		if o.DiscID == nil {
			continue
		}
		snap.Offers[*o.DiscID] = append(snap.Offers[*o.DiscID], *o)
	}
	for _, g := range groups {
		snap.PriceGroups[g.DiscID] = append(snap.PriceGroups[g.DiscID], *g)
	}
	for _, m := range free {
		snap.FreeMonths[m.Key()] = struct{}{}
	}
	for _, m := range special {
		snap.SpecialMonths[m.Key()] = *m
	}
	return snap
}

// NewSnapshot builds a snapshot from in-memory rows.
func NewSnapshot(
	confs []domain.Conf,
	offers []domain.Offer,
	groups []domain.PriceGroupRule,
	free []domain.FreeMonth,
	special []domain.SpecialMonth,
) *Snapshot {
	return build(ptrs(confs), ptrs(offers), ptrs(groups), ptrs(free), ptrs(special), time.Time{})
}

func ptrs[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
