package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type RequestStatus string

const (
	RequestStatusWorking RequestStatus = "W"
	RequestStatusDone    RequestStatus = "P"
	RequestStatusFailed  RequestStatus = "F"
)

type PackageStatus string

const (
	PackageStatusInitial PackageStatus = "I"
	PackageStatusWorking PackageStatus = "W"
	PackageStatusDone    PackageStatus = "P"
	PackageStatusFailed  PackageStatus = "F"
)

type ContractStatus string

const (
	ContractStatusInitial   ContractStatus = "I"
	ContractStatusProcessed ContractStatus = "P"
	ContractStatusFailed    ContractStatus = "F"
	ContractStatusSkipped   ContractStatus = "S"
)

// Request is one discount run for a bill cycle.
type Request struct {
	RequestID         int64         `json:"request_id" gorm:"column:request_id;primaryKey;autoIncrement:false"`
	Status            RequestStatus `json:"status" gorm:"column:status;type:varchar(1);not null"`
	StartDate         time.Time     `json:"start_date" gorm:"column:start_date;not null"`
	StatusDate        *time.Time    `json:"status_date,omitempty" gorm:"column:status_date"`
	BillCycle         string        `json:"billcycle" gorm:"column:billcycle;type:varchar(2);not null"`
	BillPeriodEndDate time.Time     `json:"bill_period_end_date" gorm:"column:bill_period_end_date;not null"`
}

func (Request) TableName() string { return "dyn_disc_request" }

// PackageKey identifies a package within a request.
type PackageKey struct {
	RequestID int64
	PackID    int
}

// Package is a shard of contracts processed as one concurrency unit.
type Package struct {
	RequestID     int64         `json:"request_id" gorm:"column:request_id;primaryKey;autoIncrement:false"`
	PackID        int           `json:"pack_id" gorm:"column:pack_id;primaryKey;autoIncrement:false"`
	Status        PackageStatus `json:"status" gorm:"column:status;type:varchar(1);not null"`
	EntryDate     time.Time     `json:"entry_date" gorm:"column:entry_date;not null"`
	StartDate     *time.Time    `json:"start_date,omitempty" gorm:"column:start_date"`
	EndDate       *time.Time    `json:"end_date,omitempty" gorm:"column:end_date"`
	ContractCount int           `json:"contract_count" gorm:"column:contract_count;not null"`
}

func (Package) TableName() string { return "dyn_disc_package" }

func (p Package) Key() PackageKey {
	return PackageKey{RequestID: p.RequestID, PackID: p.PackID}
}

// ContractKey is the composite natural key of a contract row.
type ContractKey struct {
	RequestID  int64
	PackID     int
	CustomerID int64
	CoID       int64
}

// Contract is one subscriber service line within a request.
type Contract struct {
	RequestID  int64          `json:"request_id" gorm:"column:request_id;primaryKey;autoIncrement:false"`
	PackID     int            `json:"pack_id" gorm:"column:pack_id;primaryKey;autoIncrement:false"`
	CustomerID int64          `json:"customer_id" gorm:"column:customer_id;primaryKey;autoIncrement:false"`
	CoID       int64          `json:"co_id" gorm:"column:co_id;primaryKey;autoIncrement:false"`
	LbcDate    *time.Time     `json:"lbc_date,omitempty" gorm:"column:lbc_date"`
	PrgCode    string         `json:"prgcode" gorm:"column:prgcode"`
	TmCode     int64          `json:"tmcode" gorm:"column:tmcode"`
	Status     ContractStatus `json:"status" gorm:"column:status;type:varchar(1);not null"`
	Remark     string         `json:"remark" gorm:"column:remark"`
}

func (Contract) TableName() string { return "dyn_disc_contract" }

func (c Contract) Key() ContractKey {
	return ContractKey{RequestID: c.RequestID, PackID: c.PackID, CustomerID: c.CustomerID, CoID: c.CoID}
}

// EligibleContract is a row of the eligibility query before it is attached to a request.
type EligibleContract struct {
	CustomerID int64      `gorm:"column:customer_id"`
	CoID       int64      `gorm:"column:co_id"`
	LbcDate    *time.Time `gorm:"column:lbc_date"`
	PrgCode    string     `gorm:"column:prgcode"`
	TmCode     int64      `gorm:"column:tmcode"`
}

// Statistic summarizes a finalized request.
type Statistic struct {
	RequestID       int64           `json:"request_id" gorm:"column:request_id;primaryKey;autoIncrement:false"`
	StartDate       time.Time       `json:"start_date" gorm:"column:start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty" gorm:"column:end_date"`
	CustCnt         int64           `json:"cust_cnt" gorm:"column:cust_cnt"`
	ContrCnt        int64           `json:"contr_cnt" gorm:"column:contr_cnt"`
	ContrGrantedCnt int64           `json:"contr_granted_cnt" gorm:"column:contr_granted_cnt"`
	ContrSkippedCnt int64           `json:"contr_skipped_cnt" gorm:"column:contr_skipped_cnt"`
	OfferOccCnt     int64           `json:"offer_occ_cnt" gorm:"column:offer_occ_cnt"`
	AloOccCnt       int64           `json:"alo_occ_cnt" gorm:"column:alo_occ_cnt"`
	OfferOccAmt     decimal.Decimal `json:"offer_occ_amt" gorm:"column:offer_occ_amt;type:numeric(14,4)"`
	AloOccAmt       decimal.Decimal `json:"alo_occ_amt" gorm:"column:alo_occ_amt;type:numeric(14,4)"`
}

func (Statistic) TableName() string { return "dyn_disc_statistic" }

// BillCycleDefinition holds the next target run date per bill cycle.
type BillCycleDefinition struct {
	BillCycle     string         `gorm:"column:billcycle;primaryKey;type:varchar(2)"`
	TargetRunDate datatypes.Date `gorm:"column:target_run_date"`
}

func (BillCycleDefinition) TableName() string { return "billcycle_definition" }
