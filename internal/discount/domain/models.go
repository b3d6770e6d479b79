package domain

import (
	"time"

	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"github.com/shopspring/decimal"
)

// Wildcard matches any tm or service code in an offer row. It doubles as the
// unlimited sentinel for durations and apply-count limits.
const Wildcard = -1

const (
	OfferStatusActive    = "A"
	OfferStatusSuspended = "S"
	OfferStatusOnHold    = "O"
	OfferStatusDeactive  = "D"
)

// Conf is the configuration of one discount.
type Conf struct {
	DiscID       int64           `gorm:"column:disc_id;primaryKey;autoIncrement:false"`
	Name         string          `gorm:"column:name"`
	Description  string          `gorm:"column:description;type:varchar(100)"`
	DiscSncode   int64           `gorm:"column:disc_sncode"`
	Duration     *int            `gorm:"column:duration"`
	OfferDiscAmt decimal.Decimal `gorm:"column:offer_disc_amt;type:numeric(14,4)"`
	AloDiscAmt   decimal.Decimal `gorm:"column:alo_disc_amt;type:numeric(14,4)"`
	OccSncode    int64           `gorm:"column:occ_sncode"`
	OccGlcode    string          `gorm:"column:occ_glcode"`
	OccRemark    string          `gorm:"column:occ_remark"`
	ValidFrom    *time.Time      `gorm:"column:valid_from"`
	ValidTo      *time.Time      `gorm:"column:valid_to"`
	AloDiscInd   bool            `gorm:"column:alo_disc_ind"`
	SuspInd      bool            `gorm:"column:susp_ind"`
	CreatedAt    *time.Time      `gorm:"column:created_at"`
	Username     string          `gorm:"column:username"`
}

func (Conf) TableName() string { return "dyn_disc_conf" }

// Finite reports whether the discount stops after a fixed number of applications.
func (c Conf) Finite() bool {
	return c.Duration != nil && *c.Duration != Wildcard
}

// Offer is a priced service variant a discount applies to.
type Offer struct {
	OfferID         int64               `gorm:"column:offer_id;primaryKey;autoIncrement:false"`
	DiscID          *int64              `gorm:"column:disc_id"`
	TmCode          int64               `gorm:"column:tmcode"`
	SnCode          int64               `gorm:"column:sncode"`
	OfferDiscAmt    decimal.NullDecimal `gorm:"column:offer_disc_amt;type:numeric(14,4)"`
	AloDiscAmt      decimal.NullDecimal `gorm:"column:alo_disc_amt;type:numeric(14,4)"`
	EligStartDate   *time.Time          `gorm:"column:elig_start_date"`
	EligEndDate     *time.Time          `gorm:"column:elig_end_date"`
	FreeMonthInd    bool                `gorm:"column:free_month_ind"`
	SpecialMonthInd bool                `gorm:"column:special_month_ind"`
}

func (Offer) TableName() string { return "dyn_disc_offer" }

// EligibleOn reports whether at falls within the offer's eligibility window.
// Missing bounds are open.
func (o Offer) EligibleOn(at time.Time) bool {
	if o.EligStartDate != nil && at.Before(*o.EligStartDate) {
		return false
	}
	if o.EligEndDate != nil && at.After(*o.EligEndDate) {
		return false
	}
	return true
}

type PriceGroupKey struct {
	DiscID  int64
	PrgCode string
}

// PriceGroupRule restricts (allow-list) or prohibits (deny-list) a price group.
type PriceGroupRule struct {
	DiscID      int64  `gorm:"column:disc_id;primaryKey;autoIncrement:false"`
	PrgCode     string `gorm:"column:prgcode;primaryKey"`
	RestrictInd bool   `gorm:"column:restrict_ind;not null"`
	ProhibitInd bool   `gorm:"column:prohibit_ind;not null"`
}

func (PriceGroupRule) TableName() string { return "dyn_disc_price_group" }

func (r PriceGroupRule) Key() PriceGroupKey {
	return PriceGroupKey{DiscID: r.DiscID, PrgCode: r.PrgCode}
}

type MonthKey struct {
	OfferID int64
	MonthNo int
}

type FreeMonth struct {
	OfferID int64 `gorm:"column:offer_id;primaryKey;autoIncrement:false"`
	MonthNo int   `gorm:"column:month_no;primaryKey;autoIncrement:false"`
}

func (FreeMonth) TableName() string { return "dyn_disc_free_month" }

func (m FreeMonth) Key() MonthKey { return MonthKey{OfferID: m.OfferID, MonthNo: m.MonthNo} }

type SpecialMonth struct {
	OfferID      int64           `gorm:"column:offer_id;primaryKey;autoIncrement:false"`
	MonthNo      int             `gorm:"column:month_no;primaryKey;autoIncrement:false"`
	OfferDiscAmt decimal.Decimal `gorm:"column:offer_disc_amt;type:numeric(14,4)"`
	AloDiscAmt   decimal.Decimal `gorm:"column:alo_disc_amt;type:numeric(14,4)"`
}

func (SpecialMonth) TableName() string { return "dyn_disc_special_month" }

func (m SpecialMonth) Key() MonthKey { return MonthKey{OfferID: m.OfferID, MonthNo: m.MonthNo} }

type Type struct {
	TypeID      int64  `gorm:"column:type_id;primaryKey;autoIncrement:false"`
	Description string `gorm:"column:description;type:varchar(200);not null"`
}

func (Type) TableName() string { return "dyn_disc_type" }

// Assignment is a standing discount subscription of a contract.
type Assignment struct {
	AssignID        int64      `gorm:"column:assign_id;primaryKey;autoIncrement:false"`
	CustomerID      int64      `gorm:"column:customer_id;not null"`
	CoID            int64      `gorm:"column:co_id;not null;index"`
	DiscSncode      int64      `gorm:"column:disc_sncode;not null"`
	DiscID          int64      `gorm:"column:disc_id;not null"`
	EntryDate       *time.Time `gorm:"column:entry_date"`
	AssignDate      time.Time  `gorm:"column:assign_date"`
	DeleteDate      *time.Time `gorm:"column:delete_date"`
	ExpireDate      *time.Time `gorm:"column:expire_date"`
	LastAppliedDate *time.Time `gorm:"column:last_applied_date"`
	ApplyCount      int        `gorm:"column:apply_count"`
	OvwApplyCount   *int       `gorm:"column:ovw_apply_count"`
}

func (Assignment) TableName() string { return "dyn_disc_assign" }

// Candidate is an assignment joined with the live offer and ALO service state
// of its contract as of the cutoff date. It is never persisted.
type Candidate struct {
	RequestID      int64               `gorm:"column:request_id"`
	AssignID       int64               `gorm:"column:assign_id"`
	AssignDate     time.Time           `gorm:"column:assign_date"`
	DiscSncode     int64               `gorm:"column:disc_sncode"`
	DiscID         int64               `gorm:"column:disc_id"`
	ApplyCount     int                 `gorm:"column:apply_count"`
	OvwApplyCount  *int                `gorm:"column:ovw_apply_count"`
	CustomerID     int64               `gorm:"column:customer_id"`
	CoID           int64               `gorm:"column:co_id"`
	LbcDate        *time.Time          `gorm:"column:lbc_date"`
	PrgCode        string              `gorm:"column:prgcode"`
	TmCode         int64               `gorm:"column:tmcode"`
	OfferSncode    int64               `gorm:"column:offer_sncode"`
	OfferValidFrom *time.Time          `gorm:"column:offer_valid_from"`
	OfferStatus    string              `gorm:"column:offer_status"`
	OfferPrice     decimal.Decimal     `gorm:"column:offer_price"`
	AloSncode      *int64              `gorm:"column:alo_sncode"`
	AloValidFrom   *time.Time          `gorm:"column:alo_valid_from"`
	AloStatus      string              `gorm:"column:alo_status"`
	AloPrice       decimal.NullDecimal `gorm:"column:alo_price"`
}

// AloBasePrice is the live ALO price, zero when the contract has no ALO service.
func (c Candidate) AloBasePrice() decimal.Decimal {
	if c.AloPrice.Valid {
		return c.AloPrice.Decimal
	}
	return decimal.Zero
}

// EvalHistory records the resolved inputs of one discount decision.
type EvalHistory struct {
	RequestID         int64               `gorm:"column:request_id;primaryKey;autoIncrement:false"`
	AssignID          int64               `gorm:"column:assign_id;primaryKey;autoIncrement:false"`
	CustomerID        int64               `gorm:"column:customer_id"`
	CoID              int64               `gorm:"column:co_id"`
	BillPeriodEndDate time.Time           `gorm:"column:bill_period_end_date"`
	LbcDate           *time.Time          `gorm:"column:lbc_date"`
	PrgCode           string              `gorm:"column:prgcode"`
	TmCode            int64               `gorm:"column:tmcode"`
	DiscSncode        int64               `gorm:"column:disc_sncode"`
	DiscID            int64               `gorm:"column:disc_id"`
	OccSncode         int64               `gorm:"column:occ_sncode"`
	OccGlcode         string              `gorm:"column:occ_glcode"`
	OccRemark         string              `gorm:"column:occ_remark"`
	OfferSncode       int64               `gorm:"column:offer_sncode"`
	OfferPrice        decimal.Decimal     `gorm:"column:offer_price;type:numeric(14,4)"`
	OfferValidFrom    *time.Time          `gorm:"column:offer_valid_from"`
	OfferStatus       string              `gorm:"column:offer_status"`
	AloSncode         *int64              `gorm:"column:alo_sncode"`
	AloPrice          decimal.NullDecimal `gorm:"column:alo_price;type:numeric(14,4)"`
	AloValidFrom      *time.Time          `gorm:"column:alo_valid_from"`
	AloStatus         string              `gorm:"column:alo_status"`
}

func (EvalHistory) TableName() string { return "dyn_disc_eval_history" }

// GrantHistory records the computed amounts of one discount decision and
// whether each OCC was created.
type GrantHistory struct {
	RequestID         int64           `gorm:"column:request_id;primaryKey;autoIncrement:false"`
	AssignID          int64           `gorm:"column:assign_id;primaryKey;autoIncrement:false"`
	OfferDiscAmount   decimal.Decimal `gorm:"column:offer_disc_amount;type:numeric(14,4)"`
	FreeMonth         bool            `gorm:"column:free_month"`
	SpecialMonth      bool            `gorm:"column:special_month"`
	OfferCapped       bool            `gorm:"column:offer_capped"`
	CurrentApplyCount int             `gorm:"column:current_apply_count"`
	LastApply         bool            `gorm:"column:last_apply"`
	AloDiscAmount     decimal.Decimal `gorm:"column:alo_disc_amount;type:numeric(14,4)"`
	AloDiscInd        bool            `gorm:"column:alo_disc_ind"`
	AloCapped         bool            `gorm:"column:alo_capped"`
	Note              string          `gorm:"column:note"`
	OfferOccCreated   bool            `gorm:"column:offer_occ_created"`
	AloOccCreated     bool            `gorm:"column:alo_occ_created"`
	Username          string          `gorm:"column:username"`
}

func (GrantHistory) TableName() string { return "dyn_disc_grant_history" }

// Outcome is the result of evaluating one contract. Eval and Grant are nil
// when the contract was skipped or failed evaluation.
type Outcome struct {
	Contract requestdomain.Contract
	Eval     *EvalHistory
	Grant    *GrantHistory
}

func (o Outcome) Granted() bool {
	return o.Eval != nil && o.Grant != nil
}
