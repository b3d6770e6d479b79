package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindRequestsByStatus(ctx context.Context, db *gorm.DB, status RequestStatus) ([]Request, error)
	FindRequestByID(ctx context.Context, db *gorm.DB, requestID int64) (*Request, error)
	NextRequestID(ctx context.Context, db *gorm.DB) (int64, error)
	InsertRequest(ctx context.Context, db *gorm.DB, req *Request) error
	UpdateRequestStatus(ctx context.Context, db *gorm.DB, requestID int64, status RequestStatus, statusDate time.Time) (int64, error)

	FindCutoffDate(ctx context.Context, db *gorm.DB, billCycle string) (*time.Time, error)
	FindEligibleContracts(ctx context.Context, db *gorm.DB, cutoff time.Time, billCycle string) ([]EligibleContract, error)

	InsertPackages(ctx context.Context, db *gorm.DB, packages []Package) error
	FindPackageIDsByStatus(ctx context.Context, db *gorm.DB, requestID int64, status PackageStatus) ([]int, error)
	MarkPackageStarted(ctx context.Context, db *gorm.DB, key PackageKey, at time.Time) error
	MarkPackageFinished(ctx context.Context, db *gorm.DB, key PackageKey, status PackageStatus, at time.Time) error
	CloseOpenPackages(ctx context.Context, db *gorm.DB, requestID int64) (int64, error)
	MaxPackID(ctx context.Context, db *gorm.DB, requestID int64) (int, error)
	CountPackagesByStatus(ctx context.Context, db *gorm.DB, requestID int64, status PackageStatus) (int64, error)

	InsertContracts(ctx context.Context, db *gorm.DB, contracts []Contract) error
	FindContractsByPackage(ctx context.Context, db *gorm.DB, key PackageKey, status ContractStatus) ([]Contract, error)
	FindResettableContracts(ctx context.Context, db *gorm.DB, requestID int64) ([]Contract, error)
	MoveContractsToPackage(ctx context.Context, db *gorm.DB, requestID int64, packID int, coIDs []int64) (int64, error)
	UpdateContractOutcome(ctx context.Context, db *gorm.DB, contract *Contract) error
	UpdateContractStatusAndRemark(ctx context.Context, db *gorm.DB, requestID, coID int64, status ContractStatus, remark string) error
	CountContractsByStatus(ctx context.Context, db *gorm.DB, requestID int64, status ContractStatus) (int64, error)

	ComputeStatistic(ctx context.Context, db *gorm.DB, requestID int64) (*Statistic, error)
	SaveStatistic(ctx context.Context, db *gorm.DB, stat *Statistic) error
}
